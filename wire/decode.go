package wire

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/value"
)

// Unmarshal decodes a versioned frame produced by Marshal. Trailing bytes
// are an error.
func Unmarshal(data []byte) (value.Value, error) {
	if len(data) == 0 {
		return nil, corrupt("empty frame")
	}
	if data[0] != Version {
		return nil, corrupt("unsupported frame version %d", data[0])
	}
	return Decode(data[1:])
}

// Decode decodes exactly one unversioned value from data.
func Decode(data []byte) (value.Value, error) {
	d := decoder{buf: data}
	v, err := d.value(0)
	if err != nil {
		return nil, err
	}
	if len(d.buf) != 0 {
		return nil, corrupt("%d trailing bytes", len(d.buf))
	}
	return v, nil
}

func corrupt(format string, args ...any) error {
	return errs.New(errs.DeserializationError, "wire decode", format, args...)
}

type decoder struct {
	buf []byte
}

func (d *decoder) uvarint() (uint64, error) {
	n, w := binary.Uvarint(d.buf)
	if w <= 0 {
		return 0, corrupt("bad uvarint")
	}
	d.buf = d.buf[w:]
	return n, nil
}

func (d *decoder) take(n uint64) ([]byte, error) {
	if n > uint64(len(d.buf)) {
		return nil, corrupt("need %d bytes, have %d", n, len(d.buf))
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b, nil
}

// count reads an element count. Every element needs at least two bytes
// (tag and length), which bounds allocations by the input size.
func (d *decoder) count() (int, error) {
	n, err := d.uvarint()
	if err != nil {
		return 0, err
	}
	if n > uint64(len(d.buf))/2 {
		return 0, corrupt("count %d exceeds payload", n)
	}
	return int(n), nil
}

func (d *decoder) value(depth int) (value.Value, error) {
	if depth > MaxDepth {
		return nil, corrupt("nesting deeper than %d", MaxDepth)
	}
	hdr, err := d.take(1)
	if err != nil {
		return nil, err
	}
	n, err := d.uvarint()
	if err != nil {
		return nil, err
	}
	payload, err := d.take(n)
	if err != nil {
		return nil, err
	}
	return decodePayload(hdr[0], payload, depth)
}

func decodePayload(tag byte, p []byte, depth int) (value.Value, error) {
	switch tag {
	case tagNull:
		if len(p) != 0 {
			return nil, corrupt("null with %d-byte payload", len(p))
		}
		return value.Null{}, nil
	case tagBool:
		if len(p) != 1 || p[0] > 1 {
			return nil, corrupt("bad bool payload")
		}
		return value.Bool(p[0] == 1), nil
	case tagInt:
		if len(p) != 8 {
			return nil, corrupt("int payload is %d bytes", len(p))
		}
		return value.Int(int64(binary.BigEndian.Uint64(p))), nil
	case tagFloat:
		if len(p) != 8 {
			return nil, corrupt("float payload is %d bytes", len(p))
		}
		return value.Float(math.Float64frombits(binary.BigEndian.Uint64(p))), nil
	case tagString:
		if !utf8.Valid(p) {
			return nil, corrupt("string is not valid UTF-8")
		}
		return value.String(p), nil
	case tagBytes:
		out := make(value.Bytes, len(p))
		copy(out, p)
		return out, nil
	case tagArray, tagTuple:
		seq, err := decodeSeq(p, depth)
		if err != nil {
			return nil, err
		}
		if tag == tagTuple {
			return value.Tuple(seq), nil
		}
		return value.Array(seq), nil
	case tagMap:
		return decodeMap(p, depth)
	case tagTimestamp:
		if len(p) != timestampLen {
			return nil, corrupt("timestamp payload is %d bytes", len(p))
		}
		sec := int64(binary.BigEndian.Uint64(p[0:8]))
		micros := binary.BigEndian.Uint32(p[8:12])
		if p[12] > 1 {
			return nil, corrupt("bad timestamp offset flag")
		}
		off := int16(binary.BigEndian.Uint16(p[13:15]))
		ts, err := value.TimestampAt(sec, micros, int(off), p[12] == 1)
		if err != nil {
			return nil, corrupt("timestamp: %v", err)
		}
		return ts, nil
	case tagHandle:
		d := decoder{buf: p}
		id, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(d.buf) {
			return nil, corrupt("handle type is not valid UTF-8")
		}
		return value.Handle{ID: id, Type: string(d.buf)}, nil
	}
	return nil, corrupt("unknown tag 0x%02x", tag)
}

func decodeSeq(p []byte, depth int) ([]value.Value, error) {
	d := decoder{buf: p}
	n, err := d.count()
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, n)
	for i := range out {
		if out[i], err = d.value(depth + 1); err != nil {
			return nil, err
		}
	}
	if len(d.buf) != 0 {
		return nil, corrupt("%d stray bytes in sequence", len(d.buf))
	}
	return out, nil
}

func decodeMap(p []byte, depth int) (value.Value, error) {
	d := decoder{buf: p}
	n, err := d.count()
	if err != nil {
		return nil, err
	}
	m := value.NewMap()
	for i := 0; i < n; i++ {
		klen, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		kb, err := d.take(klen)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(kb) {
			return nil, corrupt("map key is not valid UTF-8")
		}
		k := string(kb)
		if m.Has(k) {
			return nil, corrupt("duplicate map key %q", k)
		}
		v, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		m.Set(k, v)
	}
	if len(d.buf) != 0 {
		return nil, corrupt("%d stray bytes in map", len(d.buf))
	}
	return m, nil
}
