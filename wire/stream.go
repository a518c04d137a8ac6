package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/value"
)

// MaxFrameSize bounds a single frame read by a Decoder.
const MaxFrameSize = 64 << 20

// Encoder writes length-delimited frames to a stream.
type Encoder struct {
	w   io.Writer
	buf []byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes v as one frame preceded by its uvarint length.
func (e *Encoder) Encode(v value.Value) error {
	frame, err := Append(append(e.buf[:0], Version), v)
	if err != nil {
		return err
	}
	e.buf = frame
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(frame)))
	if _, err := e.w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err = e.w.Write(frame)
	return err
}

// Decoder reads frames written by an Encoder.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads the next frame. It returns io.EOF at a clean end of stream.
func (d *Decoder) Decode() (value.Value, error) {
	n, err := binary.ReadUvarint(d.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errs.Wrap(errs.DeserializationError, "wire decode", err)
	}
	if n > MaxFrameSize {
		return nil, corrupt("frame of %d bytes exceeds limit", n)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(d.r, frame); err != nil {
		return nil, errs.Wrap(errs.DeserializationError, "wire decode", err)
	}
	return Unmarshal(frame)
}
