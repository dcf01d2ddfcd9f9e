package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// requestError is a malformed or unanswerable request. Evaluation
// failures are not request errors: they are reported in the response.
type requestError struct {
	code codes.Code
	msg  string
}

func (e *requestError) Error() string {
	return e.msg
}

func invalidArgument(format string, args ...interface{}) error {
	return &requestError{code: codes.InvalidArgument, msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) error {
	return &requestError{code: codes.NotFound, msg: fmt.Sprintf(format, args...)}
}

// connectError converts a service error for the Connect transport.
func connectError(err error) error {
	var re *requestError
	switch {
	case errors.As(err, &re):
		switch re.code {
		case codes.NotFound:
			return connect.NewError(connect.CodeNotFound, re)
		default:
			return connect.NewError(connect.CodeInvalidArgument, re)
		}
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// grpcError converts a service error for the gRPC transport.
func grpcError(err error) error {
	var re *requestError
	if errors.As(err, &re) {
		return status.Error(re.code, re.msg)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Internal, err.Error())
}

func errUnknownMethod(method string) error {
	return fmt.Errorf("unknown method %q", method)
}
