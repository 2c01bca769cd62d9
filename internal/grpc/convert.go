package grpc

import (
	"errors"
	"math"

	"electoral-service/internal/core/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStatus maps a domain error onto a gRPC status. It is only used by the
// control-plane services; report queries answer with wire sentinels.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		if _, ok := status.FromError(err); ok {
			return err
		}
	}
	code := codes.Unavailable
	switch domain.KindOf(err) {
	case domain.KindInvalidArgument:
		code = codes.InvalidArgument
	case domain.KindNotFound:
		code = codes.NotFound
	case domain.KindAlreadyRunning:
		code = codes.FailedPrecondition
	case domain.KindUnitGenerationFailed:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func stringList(items []string) *structpb.ListValue {
	values := make([]*structpb.Value, len(items))
	for i, s := range items {
		values[i] = structpb.NewStringValue(s)
	}
	return &structpb.ListValue{Values: values}
}

func fromStringList(l *structpb.ListValue) []string {
	out := make([]string, 0, len(l.GetValues()))
	for _, v := range l.GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}

// intField reads a whole number from s. Numbers travel as doubles in a
// Struct, so fractional or out of range values are rejected.
func intField(s *structpb.Struct, name string) (int, bool, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, false, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, true, domain.Errorf(domain.KindInvalidArgument, "%s must be a number", name)
	}
	f := n.NumberValue
	if !isInt32(f) {
		return 0, true, domain.Errorf(domain.KindInvalidArgument, "%s must be an integer, got %v", name, f)
	}
	return int(f), true, nil
}

func isInt32(f float64) bool {
	return f == math.Trunc(f) && f <= math.MaxInt32 && f >= math.MinInt32
}

func stringField(s *structpb.Struct, name string) (string, bool) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", false
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return sv.StringValue, true
}

func intListField(s *structpb.Struct, name string) ([]int, bool, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return nil, false, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, true, domain.Errorf(domain.KindInvalidArgument, "%s must be a list", name)
	}
	out := make([]int, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		n, ok := item.GetKind().(*structpb.Value_NumberValue)
		if !ok || !isInt32(n.NumberValue) {
			return nil, true, domain.Errorf(domain.KindInvalidArgument, "%s[%d] must be an integer", name, i)
		}
		out = append(out, int(n.NumberValue))
	}
	return out, true, nil
}

func electionField(s *structpb.Struct) (domain.ElectionID, error) {
	e, ok, err := intField(s, "electionId")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.Errorf(domain.KindInvalidArgument, "electionId is required")
	}
	return domain.ElectionID(e), nil
}
