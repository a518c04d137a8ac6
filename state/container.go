package state

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"

	"github.com/chazu/scriptbridge/bridge"
	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/value"
	"github.com/chazu/scriptbridge/wire"
)

// Saved containers are laid out as
//
//	version (1 byte) | header length (uint32 LE) | CBOR header | blob
//
// where the header is the State's Params and blob is whatever the
// instance's save method returned.
const (
	containerVersion = 1
	saveMethod       = "save"
)

// Save writes the state, including its params, to w.
func (s *State) Save(ctx context.Context, w io.Writer) error {
	res, err := s.Call(ctx, saveMethod)
	if err != nil {
		return err
	}
	blob, ok := res.(value.Bytes)
	if !ok {
		return errs.New(errs.TypeMismatch, "state save", "%s.%s returned %s, not bytes", s.params.Class, saveMethod, res.Kind())
	}
	header, err := wire.MarshalEnvelope(s.params)
	if err != nil {
		return err
	}

	var prefix [5]byte
	prefix[0] = containerVersion
	binary.LittleEndian.PutUint32(prefix[1:], uint32(len(header)))
	for _, part := range [][]byte{prefix[:], header, blob} {
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	log.Debugf("saved %s.%s (%d byte blob)", s.params.Module, s.params.Class, len(blob))
	return nil
}

// Load restores a State saved by Save. The class's "load" class or static
// method receives the saved blob.
func Load(ctx context.Context, sess *bridge.Session, r io.Reader, opts ...Option) (*State, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	params, blob, err := parseContainer(data)
	if err != nil {
		return nil, err
	}
	h, err := sess.Instantiate(ctx, bridge.InstantiateRequest{
		Module: params.Module,
		Class:  params.Class,
		Mode:   bridge.ModeLoad,
		Blob:   blob,
		Owner:  applyOptions(opts).owner,
	})
	if err != nil {
		return nil, err
	}
	log.Debugf("loaded %s.%s as %s", params.Module, params.Class, h)
	return &State{sess: sess, params: params, handle: h}, nil
}

func parseContainer(data []byte) (Params, []byte, error) {
	const op = "state load"
	if len(data) < 5 {
		return Params{}, nil, errs.New(errs.DeserializationError, op, "container too short (%d bytes)", len(data))
	}
	if data[0] != containerVersion {
		return Params{}, nil, errs.New(errs.DeserializationError, op, "unsupported container version %d", data[0])
	}
	n := binary.LittleEndian.Uint32(data[1:5])
	rest := data[5:]
	if uint64(n) > uint64(len(rest)) {
		return Params{}, nil, errs.New(errs.DeserializationError, op, "header length %d exceeds container", n)
	}
	var params Params
	if err := wire.UnmarshalEnvelope(rest[:n], &params); err != nil {
		return Params{}, nil, errs.WithOp(op, err)
	}
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return Params{}, nil, errs.Wrap(errs.DeserializationError, op, err)
	}
	// The loader must see an empty blob, never a missing one.
	blob := bytes.Clone(rest[n:])
	if blob == nil {
		blob = []byte{}
	}
	return params, blob, nil
}
