package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/scriptbridge/bridge"
	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/value"
)

// InspectService implements the InspectService Connect handler. Requests
// and responses are google.protobuf.Struct so any Connect or JSON client
// can browse a running bridge.
type InspectService struct {
	bridge *bridge.Session
}

// NewInspectService creates an InspectService.
func NewInspectService(b *bridge.Session) *InspectService {
	return &InspectService{bridge: b}
}

// Describe returns a class's attributes, methods and resolution order.
//
// Request: {"module": string, "class": string}.
func (s *InspectService) Describe(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	module := stringField(req.Msg, "module")
	class := stringField(req.Msg, "class")
	if module == "" || class == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("module and class are required"))
	}

	d, err := s.bridge.Describe(ctx, module, class)
	if err != nil {
		return nil, connectError(err)
	}
	out, err := structpb.NewStruct(map[string]any{
		"name":    d.Name,
		"module":  d.Module,
		"attrs":   stringsToAny(d.Attrs),
		"methods": stringsToAny(d.Methods),
		"mro":     stringsToAny(d.MRO),
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// ListHandles lists live handles, optionally only those of one client
// session.
//
// Request: {"session": string?}.
func (s *InspectService) ListHandles(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	infos := s.bridge.Registry().List(stringField(req.Msg, "session"))

	handles := make([]any, 0, len(infos))
	for _, info := range infos {
		handles = append(handles, map[string]any{
			"id":        float64(info.Handle.ID),
			"type":      info.Handle.Type,
			"owner":     info.Owner,
			"created":   info.Created.UTC().Format(time.RFC3339Nano),
			"last_used": info.LastUsed.UTC().Format(time.RFC3339Nano),
		})
	}
	out, err := structpb.NewStruct(map[string]any{"handles": handles})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// Fields returns an instance's own fields. Fields with no value
// representation are listed by name under "unsupported".
//
// Request: {"id": number, "type": string}.
// Response: {"fields": {...}, "unsupported": [string]}.
func (s *InspectService) Fields(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	idv, ok := req.Msg.GetFields()["id"]
	if !ok || idv.GetNumberValue() <= 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("id is required"))
	}
	typ := stringField(req.Msg, "type")
	if typ == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("type is required"))
	}
	h := value.Handle{ID: uint64(idv.GetNumberValue()), Type: typ}

	snap, err := s.bridge.Fields(ctx, h)
	if err != nil {
		return nil, connectError(err)
	}
	fields := &structpb.Struct{Fields: make(map[string]*structpb.Value, snap.Values.Len())}
	snap.Values.Range(func(k string, v value.Value) bool {
		fields.Fields[k] = toStructValue(v)
		return true
	})
	unsupported := make([]*structpb.Value, len(snap.Unsupported))
	for i, name := range snap.Unsupported {
		unsupported[i] = structpb.NewStringValue(name)
	}
	return connect.NewResponse(&structpb.Struct{Fields: map[string]*structpb.Value{
		"fields":      structpb.NewStructValue(fields),
		"unsupported": structpb.NewListValue(&structpb.ListValue{Values: unsupported}),
	}}), nil
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// toStructValue renders v for JSON-shaped display. Bytes become base64,
// timestamps RFC 3339 and non-finite floats their string form.
func toStructValue(v value.Value) *structpb.Value {
	switch x := v.(type) {
	case nil, value.Null:
		return structpb.NewNullValue()
	case value.Bool:
		return structpb.NewBoolValue(bool(x))
	case value.Int:
		return structpb.NewNumberValue(float64(x))
	case value.Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return structpb.NewStringValue(value.Format(x))
		}
		return structpb.NewNumberValue(f)
	case value.String:
		return structpb.NewStringValue(string(x))
	case value.Bytes:
		return structpb.NewStringValue(base64.StdEncoding.EncodeToString(x))
	case value.Timestamp:
		return structpb.NewStringValue(x.Time().Format(time.RFC3339Nano))
	case value.Handle:
		return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"id":   structpb.NewNumberValue(float64(x.ID)),
			"type": structpb.NewStringValue(x.Type),
		}})
	case value.Array:
		return listValue(x)
	case value.Tuple:
		return listValue(x)
	case *value.Map:
		s := &structpb.Struct{Fields: make(map[string]*structpb.Value, x.Len())}
		x.Range(func(k string, e value.Value) bool {
			s.Fields[k] = toStructValue(e)
			return true
		})
		return structpb.NewStructValue(s)
	}
	return structpb.NewStringValue(value.Format(v))
}

func listValue(vs []value.Value) *structpb.Value {
	l := &structpb.ListValue{Values: make([]*structpb.Value, len(vs))}
	for i, e := range vs {
		l.Values[i] = toStructValue(e)
	}
	return structpb.NewListValue(l)
}

// connectError maps a bridge error onto a Connect code for the inspect
// endpoints, which have no Fault field.
func connectError(err error) error {
	code := connect.CodeInternal
	switch errs.KindOf(err) {
	case errs.NotFound, errs.UnknownHandle:
		code = connect.CodeNotFound
	case errs.TypeMismatch, errs.MissingArgument:
		code = connect.CodeInvalidArgument
	case errs.Timeout:
		code = connect.CodeDeadlineExceeded
	case errs.SessionClosed:
		code = connect.CodeUnavailable
	}
	return connect.NewError(code, err)
}
