package fsm

import (
	"encoding/json"

	"github.com/cuemby/coordinator/pkg/cerrors"
	"github.com/cuemby/coordinator/pkg/encoding"
	"github.com/cuemby/coordinator/pkg/requests"
	"github.com/cuemby/coordinator/pkg/storage"
)

// decodePayload unmarshals req.Payload into dst, wrapped in the error
// taxonomy's Serialization kind on failure.
func decodePayload(req requests.Request, dst any) error {
	if err := json.Unmarshal(req.Payload, dst); err != nil {
		return cerrors.NewSerialization("decode payload for op "+string(req.Op), err)
	}
	return nil
}

// getEntity reads and decodes the row at key in cf, returning ok=false if
// absent. Every forward-index entity goes through this and putEntity
// rather than hand-rolled encode/decode at each call site.
func getEntity[T any](txn *storage.Txn, cf storage.CF, key string) (T, bool, error) {
	var zero T
	raw, ok, err := txn.Get(cf, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	v, err := encoding.Decode[T](raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// putEntity encodes v and writes it at key in cf.
func putEntity[T any](txn *storage.Txn, cf storage.CF, key string, v T) error {
	raw, err := encoding.Encode(v)
	if err != nil {
		return err
	}
	return txn.Put(cf, key, raw)
}
