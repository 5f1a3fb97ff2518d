// Package encoding implements the single deterministic serialization used
// for every persisted value and every snapshot payload. encoding/json is
// the wire format — Go's json.Marshal
// sorts map keys before emitting them, so the same logical value encodes to
// the same byte sequence across processes without a hand-rolled canonical
// encoder, and additive struct fields round-trip because json.Unmarshal
// ignores fields it doesn't recognize by default.
package encoding

import (
	"encoding/json"

	"github.com/cuemby/coordinator/pkg/cerrors"
)

// Encode serializes v deterministically.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, cerrors.NewSerialization("encode", err)
	}
	return b, nil
}

// Decode deserializes b into a new T, tolerating unknown fields (the
// "stable under additive schema changes" requirement).
func Decode[T any](b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return v, cerrors.NewSerialization("decode", err)
	}
	return v, nil
}
