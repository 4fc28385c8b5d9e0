package util

import (
	"encoding/json"
)

type EncoderDecoder[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte) (*T, error)
}

type JsonEncDec[T any] struct {
	indent bool
}

var _ EncoderDecoder[any] = new(JsonEncDec[any])

func NewJsonEncoderDecoder[T any]() *JsonEncDec[T] {
	return &JsonEncDec[T]{}
}

// NewIndentedJsonEncoderDecoder produces human readable output, used for
// state files that operators are expected to open.
func NewIndentedJsonEncoderDecoder[T any]() *JsonEncDec[T] {
	return &JsonEncDec[T]{indent: true}
}

func (encdec *JsonEncDec[T]) Encode(value T) ([]byte, error) {
	if encdec.indent {
		return json.MarshalIndent(value, "", "  ")
	}
	return json.Marshal(value)
}

func (encdec *JsonEncDec[T]) Decode(data []byte) (*T, error) {
	var res T
	err := json.Unmarshal(data, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
