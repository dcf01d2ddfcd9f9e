package server

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"
)

// CreateSession opens a session whose globals persist across Evaluate
// calls.
//
// Request: {name?}
// Response: {session, name}
func (s *EvalService) CreateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := optionalString(req, "name")
	if err != nil {
		return nil, err
	}
	session := s.sessions.Create(name)
	log.Infof("session %s created", session.ID)
	return fields{}.str("session", session.ID).str("name", session.Name).message(), nil
}

// CloseSession discards a session and its VM.
//
// Request: {session}
// Response: {closed}
func (s *EvalService) CloseSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireString(req, "session")
	if err != nil {
		return nil, err
	}
	if !s.sessions.Destroy(id) {
		return nil, notFound("session %q not found", id)
	}
	log.Infof("session %s closed", id)
	return fields{}.boolean("closed", true).message(), nil
}

// ListSessions returns the open session IDs in creation order.
//
// Response: {sessions}
func (s *EvalService) ListSessions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return fields{}.strings("sessions", s.sessions.IDs()).message(), nil
}
