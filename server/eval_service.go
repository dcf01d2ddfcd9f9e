package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/sabri/compiler"
	"github.com/chazu/sabri/history"
	"github.com/chazu/sabri/vm"
)

// EvalService implements the EvaluationService handlers.
type EvalService struct {
	worker   *VMWorker
	sessions *SessionStore
	history  *history.Store

	maxSteps int64
	timeout  time.Duration
}

// NewEvalService creates an EvalService. hist may be nil.
func NewEvalService(worker *VMWorker, sessions *SessionStore, hist *history.Store) *EvalService {
	return &EvalService{
		worker:   worker,
		sessions: sessions,
		history:  hist,
	}
}

// evaluation is the outcome of one Evaluate call.
type evaluation struct {
	success  bool
	result   string
	output   string
	errMsg   string
	warnings []string
	session  string
}

func (e *evaluation) message() *structpb.Struct {
	f := fields{}.
		boolean("success", e.success).
		str("result", e.result).
		str("output", e.output).
		strings("warnings", e.warnings)
	if e.errMsg != "" {
		f.str("error", e.errMsg)
	}
	if e.session != "" {
		f.str("session", e.session)
	}
	return f.message()
}

// Evaluate compiles and runs source. Without a session the source runs in
// a fresh VM that is discarded afterwards.
//
// Request: {source, session?}
// Response: {success, result, output, error?, warnings, session?}
func (s *EvalService) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	source, err := requireString(req, "source")
	if err != nil {
		return nil, err
	}
	session, err := s.lookupSession(req)
	if err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	value, err := s.worker.Do(ctx, func() interface{} {
		return s.evaluate(ctx, session, source)
	})
	var eval *evaluation
	switch {
	case errors.Is(err, context.Canceled):
		return nil, err
	case err != nil:
		eval = &evaluation{errMsg: err.Error()}
	default:
		eval = value.(*evaluation)
	}
	if session != nil {
		eval.session = session.ID
	}

	s.record(ctx, session, source, eval)
	return eval.message(), nil
}

// evaluate runs on the worker goroutine.
func (s *EvalService) evaluate(ctx context.Context, session *Session, source string) *evaluation {
	if session == nil {
		v, out := newSessionVM()
		session = &Session{VM: v, out: out}
	}
	v := session.VM
	v.MaxSteps = s.maxSteps

	result, err := v.Eval(ctx, source)
	eval := &evaluation{
		output:   session.takeOutput(),
		warnings: v.Warnings(),
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) && s.timeout > 0:
		eval.errMsg = fmt.Sprintf("evaluation exceeded %s", s.timeout)
	case err != nil:
		eval.errMsg = err.Error()
	default:
		eval.success = true
		eval.result = vm.Repr(result)
	}
	return eval
}

func (s *EvalService) record(ctx context.Context, session *Session, source string, eval *evaluation) {
	if s.history == nil {
		return
	}
	entry := history.Entry{
		Source: source,
		Result: eval.result,
		Error:  eval.errMsg,
	}
	if session != nil {
		entry.Session = session.ID
	}
	if _, err := s.history.Record(context.WithoutCancel(ctx), entry); err != nil {
		log.Warningf("recording history: %v", err)
	}
}

// CheckSyntax analyzes source without running it. Names defined in the
// session, if given, count as defined.
//
// Request: {source, session?}
// Response: {valid, diagnostics: [{severity, line, column, endLine, endColumn, message}]}
func (s *EvalService) CheckSyntax(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	source, err := requireString(req, "source")
	if err != nil {
		return nil, err
	}
	session, err := s.lookupSession(req)
	if err != nil {
		return nil, err
	}

	globals := vm.BuiltinNames()
	if session != nil {
		names, err := s.worker.Do(ctx, func() interface{} {
			return session.VM.GlobalNames()
		})
		if err != nil {
			return nil, err
		}
		globals = names.([]string)
	}

	diags := compiler.Analyze(source, globals)
	list := make([]fields, len(diags))
	for i, d := range diags {
		list[i] = fields{}.
			str("severity", d.Severity.String()).
			number("line", float64(d.Span.Start.Line)).
			number("column", float64(d.Span.Start.Column)).
			number("endLine", float64(d.Span.End.Line)).
			number("endColumn", float64(d.Span.End.Column)).
			str("message", d.Msg)
	}
	return fields{}.
		boolean("valid", !compiler.HasErrors(diags)).
		structs("diagnostics", list).
		message(), nil
}

// Disassemble compiles source standalone and returns its listing.
//
// Request: {source}
// Response: {success, listing, entry, instructions, literals, error?}
func (s *EvalService) Disassemble(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	source, err := requireString(req, "source")
	if err != nil {
		return nil, err
	}
	prog, entry, err := compiler.CompileSource(source)
	if err != nil {
		return fields{}.boolean("success", false).str("error", err.Error()).message(), nil
	}
	return fields{}.
		boolean("success", true).
		str("listing", prog.DisassembleString()).
		number("entry", float64(entry)).
		number("instructions", float64(prog.Len())).
		number("literals", float64(len(prog.Literals))).
		message(), nil
}

// lookupSession resolves the optional session field.
func (s *EvalService) lookupSession(req *structpb.Struct) (*Session, error) {
	id, err := optionalString(req, "session")
	if err != nil || id == "" {
		return nil, err
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, notFound("session %q not found", id)
	}
	return session, nil
}
