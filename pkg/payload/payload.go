// Package payload generates the synthetic records a batch dispatches.
package payload

import (
	"strconv"

	"github.com/meftunca/postbench/pkg/types"
)

// KeyPrefix is prepended to the index of every generated key
const KeyPrefix = "test-"

// Payload is the record POSTed for one request. Its JSON wire form is
// {"key":"test-<index>"}; the binary formats use the same field name.
type Payload struct {
	Key string `json:"key" msgpack:"key" cbor:"key"`
}

// Batch is an ordered sequence of payloads; position is the only identity.
type Batch []Payload

// New returns the payload for index
func New(index int) Payload {
	return Payload{Key: KeyPrefix + strconv.Itoa(index)}
}

// NewBatch generates size payloads in index order, starting at 0.
// A size of 0 yields an empty batch.
func NewBatch(size int) (Batch, error) {
	if size < 0 {
		return nil, types.ErrInvalidConfig("batch size", size)
	}

	batch := make(Batch, size)
	for i := range batch {
		batch[i] = New(i)
	}
	return batch, nil
}

// Keys returns the keys of the batch in order
func (b Batch) Keys() []string {
	keys := make([]string, len(b))
	for i, p := range b {
		keys[i] = p.Key
	}
	return keys
}
