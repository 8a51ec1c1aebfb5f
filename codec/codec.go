// Package codec serializes the structured payloads stored by herdcache.
//
// Decode is called on whatever another process left under the key, so
// implementations must return an error rather than panic on foreign input.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
