package server

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// Requests and responses are structpb.Struct values, which travel as plain
// JSON objects over Connect and as google.protobuf.Struct over gRPC.

// optionalString reads a string field. A missing or null field reads as "".
func optionalString(msg *structpb.Struct, key string) (string, error) {
	v, ok := msg.GetFields()[key]
	if !ok {
		return "", nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue, nil
	case *structpb.Value_NullValue:
		return "", nil
	}
	return "", invalidArgument("%s must be a string", key)
}

// requireString reads a string field that must be present and non-empty.
func requireString(msg *structpb.Struct, key string) (string, error) {
	s, err := optionalString(msg, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", invalidArgument("%s is required", key)
	}
	return s, nil
}

// fields builds response messages.
type fields map[string]*structpb.Value

func (f fields) str(key, value string) fields {
	f[key] = structpb.NewStringValue(value)
	return f
}

func (f fields) boolean(key string, value bool) fields {
	f[key] = structpb.NewBoolValue(value)
	return f
}

func (f fields) number(key string, value float64) fields {
	f[key] = structpb.NewNumberValue(value)
	return f
}

func (f fields) strings(key string, values []string) fields {
	list := &structpb.ListValue{}
	for _, v := range values {
		list.Values = append(list.Values, structpb.NewStringValue(v))
	}
	f[key] = structpb.NewListValue(list)
	return f
}

func (f fields) structs(key string, values []fields) fields {
	list := &structpb.ListValue{}
	for _, v := range values {
		list.Values = append(list.Values, structpb.NewStructValue(v.message()))
	}
	f[key] = structpb.NewListValue(list)
	return f
}

func (f fields) message() *structpb.Struct {
	return &structpb.Struct{Fields: f}
}
