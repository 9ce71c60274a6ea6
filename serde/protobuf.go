package serde

import (
	"google.golang.org/protobuf/proto"
)

type protobufSerde[T proto.Message] struct {
	newFn func() T
}

// Protobuf returns a Serde for messages of type T. newFn allocates the
// message decoded into.
func Protobuf[T proto.Message](newFn func() T) Serde[T] {
	return protobufSerde[T]{newFn: newFn}
}

func (s protobufSerde[T]) Serialise(_ string, value T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(value)
}

func (s protobufSerde[T]) Deserialise(_ string, data []byte) (T, error) {
	result := s.newFn()
	err := proto.Unmarshal(data, result)
	return result, err
}
