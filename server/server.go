// Package server exposes sabri evaluation over Connect (HTTP/JSON), gRPC
// and the Language Server Protocol.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/chazu/sabri/history"
)

var log = commonlog.GetLogger("sabri.server")

// Server serves the EvaluationService on an HTTP listener (Connect) and a
// gRPC listener. Both share one worker and one session store.
type Server struct {
	worker   *VMWorker
	sessions *SessionStore
	eval     *EvalService
	mux      *http.ServeMux
	grpc     *grpc.Server
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	history  *history.Store
	maxSteps int64
	timeout  time.Duration
}

// WithHistory records every evaluation in store.
func WithHistory(store *history.Store) Option {
	return func(c *serverConfig) { c.history = store }
}

// WithMaxSteps bounds each evaluation to n instructions.
func WithMaxSteps(n int64) Option {
	return func(c *serverConfig) { c.maxSteps = n }
}

// WithTimeout bounds each evaluation's wall-clock time.
func WithTimeout(d time.Duration) Option {
	return func(c *serverConfig) { c.timeout = d }
}

// New creates a Server.
func New(opts ...Option) *Server {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewVMWorker()
	sessions := NewSessionStore()
	eval := NewEvalService(worker, sessions, cfg.history)
	eval.maxSteps = cfg.maxSteps
	eval.timeout = cfg.timeout

	s := &Server{
		worker:   worker,
		sessions: sessions,
		eval:     eval,
		mux:      http.NewServeMux(),
		grpc:     grpc.NewServer(grpc.UnaryInterceptor(grpcLogger)),
	}

	path, handler := NewEvaluationServiceHandler(eval, connect.WithInterceptors(connectLogger()))
	s.mux.Handle(path, handler)
	RegisterEvaluationServer(s.grpc, eval)
	return s
}

// Handler returns the Connect HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// GRPCServer returns the gRPC server.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpc
}

// Sessions returns the session store.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// Serve serves Connect on httpLis and gRPC on grpcLis until ctx is done or
// a listener fails. grpcLis may be nil.
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	httpSrv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}

	g.Go(func() error {
		log.Noticef("Connect listening on %s", httpLis.Addr())
		if err := httpSrv.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if grpcLis != nil {
		g.Go(func() error {
			log.Noticef("gRPC listening on %s", grpcLis.Addr())
			return s.grpc.Serve(grpcLis)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.grpc.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// ListenAndServe listens on httpAddr and grpcAddr and serves until ctx is
// done. An empty grpcAddr disables gRPC.
func (s *Server) ListenAndServe(ctx context.Context, httpAddr, grpcAddr string) error {
	httpLis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return err
	}
	var grpcLis net.Listener
	if grpcAddr != "" {
		grpcLis, err = net.Listen("tcp", grpcAddr)
		if err != nil {
			httpLis.Close()
			return err
		}
	}
	return s.Serve(ctx, httpLis, grpcLis)
}

// Stop shuts down the worker. Call it after Serve returns.
func (s *Server) Stop() {
	s.worker.Stop()
}
