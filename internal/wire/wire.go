package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version    byte = 1
	kindMarker byte = 1
	kindValue  byte = 2

	hdrLen = 4 + 1 + 1 + 4
)

var (
	ErrCorrupt = errors.New("herdcache: corrupt entry")
	magic4     = [...]byte{'H', 'E', 'R', 'D'}
	marker     = encode(kindMarker, nil)
)

// Frame: magic(4) | ver(1) | kind(1) | vlen(u32 be) | payload(vlen)
func encode(kind byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kind)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Marker returns the semaphore frame written by the first observer of a key.
// It never decodes as a value.
func Marker() []byte {
	return append([]byte(nil), marker...)
}

func IsMarker(b []byte) bool {
	return bytes.Equal(b, marker)
}

func EncodeValue(payload []byte) []byte {
	return encode(kindValue, payload)
}

// DecodeValue returns the payload of a value frame. Marker frames, foreign
// bytes, truncated frames and trailing junk are all ErrCorrupt.
func DecodeValue(b []byte) ([]byte, error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version || b[5] != kindValue {
		return nil, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[6:hdrLen]))
	if vlen != len(b)-hdrLen { // exact: no truncation, no trailing bytes
		return nil, ErrCorrupt
	}
	return b[hdrLen:], nil
}
