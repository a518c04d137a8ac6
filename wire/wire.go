// Package wire encodes Values into the bridge's binary wire format.
//
// A frame is a version byte followed by one encoded value. Every value is a
// tag byte, a uvarint payload length and the payload:
//
//	Null      0x00  empty
//	Bool      0x01  1 byte, 0 or 1
//	Int64     0x02  8 bytes big-endian two's complement
//	Float64   0x03  8 bytes big-endian IEEE 754 bits
//	String    0x04  UTF-8 bytes
//	Bytes     0x05  raw bytes, never inspected
//	Array     0x06  uvarint count, then count values
//	Map       0x07  uvarint count, then count (uvarint key length, key, value)
//	Timestamp 0x08  int64 unix seconds, uint32 microseconds,
//	                1 byte has-offset flag, int16 offset minutes
//	Tuple     0x09  as Array
//	Handle    0x0A  uvarint id, then type name bytes
//
// Decoding is all-or-nothing: a malformed frame yields a
// DeserializationError and no value.
package wire

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/value"
)

// Version is the frame format version written by Marshal.
const Version byte = 0x01

// MaxDepth bounds container nesting in both directions.
const MaxDepth = 256

const (
	tagNull      byte = 0x00
	tagBool      byte = 0x01
	tagInt       byte = 0x02
	tagFloat     byte = 0x03
	tagString    byte = 0x04
	tagBytes     byte = 0x05
	tagArray     byte = 0x06
	tagMap       byte = 0x07
	tagTimestamp byte = 0x08
	tagTuple     byte = 0x09
	tagHandle    byte = 0x0A
)

const timestampLen = 8 + 4 + 1 + 2

// Marshal encodes v as a versioned frame.
func Marshal(v value.Value) ([]byte, error) {
	return Append([]byte{Version}, v)
}

// Append appends the encoding of v (without a version byte) to dst.
func Append(dst []byte, v value.Value) ([]byte, error) {
	out, err := appendValue(dst, v, 0)
	if err != nil {
		return nil, errs.WithOp("wire encode", err)
	}
	return out, nil
}

func appendValue(dst []byte, v value.Value, depth int) ([]byte, error) {
	if depth > MaxDepth {
		return nil, errs.New(errs.RangeError, "", "nesting deeper than %d", MaxDepth)
	}
	tag, err := tagOf(v)
	if err != nil {
		return nil, err
	}
	dst = append(dst, tag)
	start := len(dst)
	if dst, err = appendPayload(dst, v, depth); err != nil {
		return nil, err
	}

	// Slide the payload right to make room for its length prefix.
	n := len(dst) - start
	var lenBuf [binary.MaxVarintLen64]byte
	w := binary.PutUvarint(lenBuf[:], uint64(n))
	dst = append(dst, lenBuf[:w]...)
	copy(dst[start+w:], dst[start:start+n])
	copy(dst[start:], lenBuf[:w])
	return dst, nil
}

func tagOf(v value.Value) (byte, error) {
	switch x := v.(type) {
	case nil, value.Null:
		return tagNull, nil
	case value.Bool:
		return tagBool, nil
	case value.Int:
		return tagInt, nil
	case value.Float:
		return tagFloat, nil
	case value.String:
		return tagString, nil
	case value.Bytes:
		return tagBytes, nil
	case value.Array:
		return tagArray, nil
	case *value.Map:
		if x == nil {
			return tagNull, nil
		}
		return tagMap, nil
	case value.Timestamp:
		return tagTimestamp, nil
	case value.Tuple:
		return tagTuple, nil
	case value.Handle:
		return tagHandle, nil
	}
	return 0, errs.New(errs.UnsupportedValue, "", "no wire form for %T", v)
}

func appendPayload(dst []byte, v value.Value, depth int) ([]byte, error) {
	switch x := v.(type) {
	case value.Bool:
		if x {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case value.Int:
		return binary.BigEndian.AppendUint64(dst, uint64(x)), nil
	case value.Float:
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(float64(x))), nil
	case value.String:
		if !utf8.ValidString(string(x)) {
			return nil, errs.New(errs.TypeMismatch, "", "string is not valid UTF-8")
		}
		return append(dst, x...), nil
	case value.Bytes:
		return append(dst, x...), nil
	case value.Array:
		return appendSeq(dst, x, depth)
	case value.Tuple:
		return appendSeq(dst, x, depth)
	case *value.Map:
		if x == nil {
			return dst, nil
		}
		dst = binary.AppendUvarint(dst, uint64(x.Len()))
		var err error
		x.Range(func(k string, e value.Value) bool {
			if !utf8.ValidString(k) {
				err = errs.New(errs.TypeMismatch, "", "map key is not valid UTF-8")
				return false
			}
			dst = binary.AppendUvarint(dst, uint64(len(k)))
			dst = append(dst, k...)
			dst, err = appendValue(dst, e, depth+1)
			return err == nil
		})
		return dst, err
	case value.Timestamp:
		sec, micros := x.Unix()
		off, has := x.Offset()
		dst = binary.BigEndian.AppendUint64(dst, uint64(sec))
		dst = binary.BigEndian.AppendUint32(dst, micros)
		if has {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
		return binary.BigEndian.AppendUint16(dst, uint16(int16(off))), nil
	case value.Handle:
		dst = binary.AppendUvarint(dst, x.ID)
		return append(dst, x.Type...), nil
	}
	return dst, nil
}

func appendSeq(dst []byte, vs []value.Value, depth int) ([]byte, error) {
	dst = binary.AppendUvarint(dst, uint64(len(vs)))
	for _, e := range vs {
		var err error
		if dst, err = appendValue(dst, e, depth+1); err != nil {
			return nil, err
		}
	}
	return dst, nil
}
