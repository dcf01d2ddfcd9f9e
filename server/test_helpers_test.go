package server

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
// ---------------------------------------------------------------------------

// testEnv bundles a worker, a session store and a service over them.
type testEnv struct {
	Worker   *VMWorker
	Sessions *SessionStore
	Eval     *EvalService
}

// newTestEnv creates an isolated environment that is stopped when the test
// ends.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	w := NewVMWorker()
	s := NewSessionStore()
	t.Cleanup(w.Stop)
	return &testEnv{Worker: w, Sessions: s, Eval: NewEvalService(w, s, nil)}
}

// request builds a message from alternating keys and values.
func request(t *testing.T, kv ...interface{}) *structpb.Struct {
	t.Helper()
	m := make(map[string]interface{})
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	msg, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func getString(msg *structpb.Struct, key string) string {
	return msg.GetFields()[key].GetStringValue()
}

func getBool(msg *structpb.Struct, key string) bool {
	return msg.GetFields()[key].GetBoolValue()
}

func getList(msg *structpb.Struct, key string) []*structpb.Value {
	return msg.GetFields()[key].GetListValue().GetValues()
}

// requestCode returns the code of a *requestError, or OK.
func requestCode(err error) codes.Code {
	var re *requestError
	if errors.As(err, &re) {
		return re.code
	}
	return codes.OK
}

func bg() context.Context {
	return context.Background()
}
