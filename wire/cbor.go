package wire

import (
	"fmt"

	"github.com/chazu/scriptbridge/errs"
	"github.com/fxamacker/cbor/v2"
)

// Envelopes (RPC messages, state container headers) are CBOR. Values inside
// them travel as opaque frames produced by Marshal.

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: 64,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// MarshalEnvelope serializes an envelope struct with canonical CBOR.
func MarshalEnvelope(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// UnmarshalEnvelope deserializes a CBOR envelope into v.
func UnmarshalEnvelope(data []byte, v any) error {
	if err := cborDecMode.Unmarshal(data, v); err != nil {
		return errs.Wrap(errs.DeserializationError, "wire: unmarshal envelope", err)
	}
	return nil
}
