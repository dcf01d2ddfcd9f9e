package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	srv := New(opts...)
	t.Cleanup(srv.Stop)
	return srv
}

func TestConnectTransport(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := NewEvaluationClient(ts.Client(), ts.URL)

	created, err := client.Call(bg(), "CreateSession", request(t, "name", "remote"))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	id := getString(created, "session")

	for _, src := range []string{"n := 6", "n * 7"} {
		resp, err := client.Call(bg(), "Evaluate", request(t, "source", src, "session", id))
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", src, err)
		}
		if !getBool(resp, "success") {
			t.Fatalf("Evaluate(%q) failed: %s", src, getString(resp, "error"))
		}
		if src == "n * 7" && getString(resp, "result") != "42" {
			t.Errorf("result = %q, want 42", getString(resp, "result"))
		}
	}

	_, err = client.Call(bg(), "Evaluate", request(t, "source", "1", "session", "gone"))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("unknown session error = %v, want not found", err)
	}
	_, err = client.Call(bg(), "CheckSyntax", request(t))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("empty CheckSyntax error = %v, want invalid argument", err)
	}
	_, err = client.Call(bg(), "Frobnicate", request(t))
	if connect.CodeOf(err) != connect.CodeUnimplemented {
		t.Errorf("unknown method error = %v, want unimplemented", err)
	}
}

func TestConnectJSON(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := connect.NewClient[structpb.Struct, structpb.Struct](
		ts.Client(), ts.URL+Procedure("Evaluate"), connect.WithProtoJSON())
	resp, err := client.CallUnary(bg(), connect.NewRequest(request(t, "source", "2 ^ 8")))
	if err != nil {
		t.Fatal(err)
	}
	if got := getString(resp.Msg, "result"); got != "256" {
		t.Errorf("result = %q, want 256", got)
	}
}

func dialBufconn(t *testing.T, srv *Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go srv.GRPCServer().Serve(lis)
	t.Cleanup(srv.GRPCServer().Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPCTransport(t *testing.T) {
	conn := dialBufconn(t, newTestServer(t))

	out := new(structpb.Struct)
	if err := conn.Invoke(bg(), Procedure("Evaluate"), request(t, "source", "putsl(3 * 3)"), out); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !getBool(out, "success") || getString(out, "output") != "9\n" {
		t.Errorf("Evaluate = %v", out)
	}

	out = new(structpb.Struct)
	if err := conn.Invoke(bg(), Procedure("Disassemble"), request(t, "source", "1"), out); err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	if getString(out, "listing") == "" {
		t.Error("empty listing")
	}

	err := conn.Invoke(bg(), Procedure("CloseSession"), request(t, "session", "gone"), new(structpb.Struct))
	if status.Code(err) != codes.NotFound {
		t.Errorf("CloseSession error = %v, want not found", err)
	}
	err = conn.Invoke(bg(), Procedure("Evaluate"), request(t), new(structpb.Struct))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("empty Evaluate error = %v, want invalid argument", err)
	}
}

func TestServe(t *testing.T) {
	srv := newTestServer(t, WithMaxSteps(500))

	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(bg())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, httpLis, grpcLis) }()

	client := NewEvaluationClient(http.DefaultClient, "http://"+httpLis.Addr().String())
	resp, err := client.Call(bg(), "Evaluate", request(t, "source", "while true\n  1"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if getBool(resp, "success") {
		t.Error("unbounded loop succeeded under WithMaxSteps")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeListenerFailure(t *testing.T) {
	srv := newTestServer(t)
	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	httpLis.Close()

	err = srv.Serve(bg(), httpLis, nil)
	if err == nil || errors.Is(err, context.Canceled) {
		t.Errorf("Serve on a closed listener = %v, want accept error", err)
	}
}
