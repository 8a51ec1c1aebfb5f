package codec

import (
	"errors"

	"google.golang.org/protobuf/proto"
)

// Protobuf serializes generated messages. T is the pointer type,
// e.g. Protobuf[*mypb.User].
type Protobuf[T proto.Message] struct {
	new func() T // e.g. func() *mypb.User { return &mypb.User{} }
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	if c.new == nil {
		var zero T
		return zero, errors.New("codec: protobuf constructor is nil")
	}
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
