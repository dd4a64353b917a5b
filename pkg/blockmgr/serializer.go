package blockmgr

import (
	"bytes"
	"encoding/gob"
	"io"
)

// Serializer converts between a block's typed values and its serialized
// byte form. The serialization library proper is named an out-of-scope
// external collaborator; this default uses encoding/gob because no
// third-party serialization library is wired elsewhere in this module and
// gob's encoder/decoder pairing matches the values<->bytes contract exactly.
//
// The wire format is a sequence of independently gob-encoded values (not
// one gob-encoded slice): this lets the memory store's incremental
// PutIteratorAsBytes path encode one value at a time as it streams past the
// unroll-memory checkpoints, while a single SerializeValues(values) call
// over an already-materialized slice produces bytes a streaming consumer
// would also have produced, and DeserializeValues reads either back the
// same way.
type Serializer interface {
	SerializeValues(values []any) ([]byte, error)
	DeserializeValues(data []byte) ([]any, error)
}

// GobSerializer is the default Serializer. Concrete types passed through
// values must be registered with encoding/gob (gob.Register) before first
// use; the common built-in types are registered by this package's init.
type GobSerializer struct{}

func init() {
	gob.Register("")
	gob.Register(0)
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(false)
	gob.Register([]byte(nil))
}

// SerializeValues gob-encodes each value as its own message in sequence.
func (GobSerializer) SerializeValues(values []any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, v := range values {
		if err := enc.Encode(&v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DeserializeValues decodes a sequence of gob messages produced by
// SerializeValues (or by repeated individual encodes of the same shape)
// until the stream is exhausted.
func (GobSerializer) DeserializeValues(data []byte) ([]any, error) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var values []any
	for {
		var v any
		err := dec.Decode(&v)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
