package scriptbridgev1

import (
	"github.com/chazu/scriptbridge/wire"
	"google.golang.org/grpc/encoding"
)

// CodecName is the codec's content subtype: application/cbor for Connect,
// application/grpc+cbor for gRPC.
const CodecName = "cbor"

// Codec marshals envelopes as canonical CBOR. It satisfies both
// connect.Codec and grpc's encoding.Codec.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v any) ([]byte, error) {
	return wire.MarshalEnvelope(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return wire.UnmarshalEnvelope(data, v)
}

func init() {
	encoding.RegisterCodec(Codec{})
}
