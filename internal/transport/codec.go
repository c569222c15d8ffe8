package transport

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype this codec registers under. It
// replaces the protobuf wire codec gRPC otherwise defaults to, since every
// message type in this package is a plain Go struct rather than a
// proto.Message.
const CodecName = "gob"

// gobCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/gob. It is registered process-wide in init() and selected per
// call via grpc.ForceCodec / grpc.ForceServerCodec.
type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return CodecName }

// Codec is the shared codec instance used by both client and server.
var Codec encoding.Codec = gobCodec{}

func init() {
	encoding.RegisterCodec(Codec)
}
