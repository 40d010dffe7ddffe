package transport

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jathurchan/ralock/types"
)

// maxExactInt is the largest integer a structpb number carries without loss.
const maxExactInt = 1 << 53

// EncodeRequest builds the payload of a Request call.
func EncodeRequest(requesterID types.NodeID, ts types.Timestamp) (*structpb.Struct, error) {
	return newIntStruct(map[string]int64{
		fieldRequesterID: int64(requesterID),
		fieldTimestamp:   int64(ts),
	})
}

// DecodeRequest extracts the requester and timestamp of a Request call.
func DecodeRequest(s *structpb.Struct) (types.NodeID, types.Timestamp, error) {
	id, err := IntField(s, fieldRequesterID)
	if err != nil {
		return 0, 0, err
	}
	ts, err := IntField(s, fieldTimestamp)
	if err != nil {
		return 0, 0, err
	}
	return types.NodeID(id), types.Timestamp(ts), nil
}

// EncodeReply builds the payload of a Reply call.
func EncodeReply(replierID, requesterID types.NodeID) (*structpb.Struct, error) {
	return newIntStruct(map[string]int64{
		fieldReplierID:   int64(replierID),
		fieldRequesterID: int64(requesterID),
	})
}

// DecodeReply extracts the replier and the requester a Reply is addressed to.
func DecodeReply(s *structpb.Struct) (replierID, requesterID types.NodeID, err error) {
	r, err := IntField(s, fieldReplierID)
	if err != nil {
		return 0, 0, err
	}
	q, err := IntField(s, fieldRequesterID)
	if err != nil {
		return 0, 0, err
	}
	return types.NodeID(r), types.NodeID(q), nil
}

// EncodeNodeID wraps a node id.
func EncodeNodeID(id types.NodeID) *wrapperspb.Int64Value {
	return wrapperspb.Int64(int64(id))
}

// DecodeNodeID unwraps a node id.
func DecodeNodeID(v *wrapperspb.Int64Value) (types.NodeID, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: missing node id", ErrInvalidPayload)
	}
	n := v.GetValue()
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: node id %d out of range", ErrInvalidPayload, n)
	}
	return types.NodeID(n), nil
}

func newIntStruct(fields map[string]int64) (*structpb.Struct, error) {
	m := make(map[string]any, len(fields))
	for k, v := range fields {
		if v > maxExactInt || v < -maxExactInt {
			return nil, fmt.Errorf("%w: field %q value %d not representable", ErrInvalidPayload, k, v)
		}
		m[k] = v
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return s, nil
}

// IntField reads an integral number field from s.
func IntField(s *structpb.Struct, key string) (int64, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", ErrInvalidPayload, key)
	}
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: field %q is not a number", ErrInvalidPayload, key)
	}
	f := num.NumberValue
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return 0, fmt.Errorf("%w: field %q holds non-integral value %v", ErrInvalidPayload, key, f)
	}
	return int64(f), nil
}
