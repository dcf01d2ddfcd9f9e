package server

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// EvaluationServiceName is the fully qualified service name shared by the
// Connect and gRPC transports.
const EvaluationServiceName = "sabri.v1.EvaluationService"

// EvaluationServer is implemented by EvalService. Every method takes and
// returns a google.protobuf.Struct.
type EvaluationServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckSyntax(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Disassemble(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(EvaluationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var evaluationMethods = []struct {
	name string
	call unaryMethod
}{
	{"Evaluate", EvaluationServer.Evaluate},
	{"CheckSyntax", EvaluationServer.CheckSyntax},
	{"Disassemble", EvaluationServer.Disassemble},
	{"CreateSession", EvaluationServer.CreateSession},
	{"CloseSession", EvaluationServer.CloseSession},
	{"ListSessions", EvaluationServer.ListSessions},
}

// Procedure returns the full procedure path of an EvaluationService method.
func Procedure(method string) string {
	return "/" + EvaluationServiceName + "/" + method
}

// ---------------------------------------------------------------------------
// Connect transport
// ---------------------------------------------------------------------------

// NewEvaluationServiceHandler builds the Connect handler for svc and
// returns the path prefix to mount it on.
func NewEvaluationServiceHandler(svc EvaluationServer, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	for _, m := range evaluationMethods {
		call := m.call
		procedure := Procedure(m.name)
		mux.Handle(procedure, connect.NewUnaryHandler(procedure,
			func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
				resp, err := call(svc, ctx, req.Msg)
				if err != nil {
					return nil, connectError(err)
				}
				return connect.NewResponse(resp), nil
			}, opts...))
	}
	return "/" + EvaluationServiceName + "/", mux
}

// connectLogger logs each Connect call.
func connectLogger() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			logCall(req.Spec().Procedure, start, err)
			return resp, err
		}
	}
}

// EvaluationClient calls an EvaluationService over Connect.
type EvaluationClient struct {
	clients map[string]*connect.Client[structpb.Struct, structpb.Struct]
}

// NewEvaluationClient creates a client for the service at baseURL.
func NewEvaluationClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *EvaluationClient {
	c := &EvaluationClient{clients: make(map[string]*connect.Client[structpb.Struct, structpb.Struct])}
	for _, m := range evaluationMethods {
		c.clients[m.name] = connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+Procedure(m.name), opts...)
	}
	return c
}

// Call invokes method with req.
func (c *EvaluationClient) Call(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	client, ok := c.clients[method]
	if !ok {
		return nil, connect.NewError(connect.CodeUnimplemented, errUnknownMethod(method))
	}
	resp, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// ---------------------------------------------------------------------------
// gRPC transport
// ---------------------------------------------------------------------------

var evaluationServiceDesc = grpc.ServiceDesc{
	ServiceName: EvaluationServiceName,
	HandlerType: (*EvaluationServer)(nil),
	Methods:     grpcMethods(),
	Streams:     []grpc.StreamDesc{},
	Metadata:    "sabri/v1/evaluation.proto",
}

func grpcMethods() []grpc.MethodDesc {
	methods := make([]grpc.MethodDesc, len(evaluationMethods))
	for i, m := range evaluationMethods {
		methods[i] = grpc.MethodDesc{MethodName: m.name, Handler: grpcHandler(m.name, m.call)}
	}
	return methods
}

func grpcHandler(name string, call unaryMethod) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	info := &grpc.UnaryServerInfo{FullMethod: Procedure(name)}
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			resp, err := call(srv.(EvaluationServer), ctx, req.(*structpb.Struct))
			if err != nil {
				return nil, grpcError(err)
			}
			return resp, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		callInfo := *info
		callInfo.Server = srv
		return interceptor(ctx, in, &callInfo, handler)
	}
}

// RegisterEvaluationServer registers srv with a gRPC server.
func RegisterEvaluationServer(s grpc.ServiceRegistrar, srv EvaluationServer) {
	s.RegisterService(&evaluationServiceDesc, srv)
}

// grpcLogger logs each gRPC call.
func grpcLogger(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	logCall(info.FullMethod, start, err)
	return resp, err
}

func logCall(procedure string, start time.Time, err error) {
	if err != nil {
		log.Infof("%s failed after %s: %v", procedure, time.Since(start), err)
		return
	}
	log.Infof("%s ok in %s", procedure, time.Since(start))
}
