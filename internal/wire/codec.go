package wire

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered with grpc's encoding registry so AgentConnection
// and CliConnection streams bypass proto.Message reflection entirely and
// call straight into the hand-written Marshal (encode.go) and
// UnmarshalToServer/UnmarshalFromServer (decode.go).
const codecName = "ankaios-wire"

type wireCodec struct{}

func (wireCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *ToServer:
		return m.Marshal(), nil
	case *FromServer:
		return m.Marshal(), nil
	default:
		return nil, fmt.Errorf("wire: cannot marshal %T", v)
	}
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *ToServer:
		decoded, err := UnmarshalToServer(data)
		if err != nil {
			return err
		}
		*m = *decoded
		return nil
	case *FromServer:
		decoded, err := UnmarshalFromServer(data)
		if err != nil {
			return err
		}
		*m = *decoded
		return nil
	default:
		return fmt.Errorf("wire: cannot unmarshal into %T", v)
	}
}

func (wireCodec) Name() string { return codecName }

// Codec is the shared grpc codec for the ankaios wire format. Server-side,
// pass it via grpc.ForceServerCodec; client-side, via the per-call option
// grpc.ForceCodec.
var Codec = wireCodec{}

func init() {
	encoding.RegisterCodec(Codec)
}
