// Package adminapi is the out-of-band admin control plane: a gRPC
// service a separate `adminctl` process uses to inspect and administer a
// running daemon (stats, peers, channels, clients, ban management, KILL,
// SQUIT). Repoints the teacher's gRPC usage
// (_examples/presbrey-pkg/irc/peering.go/irc/peering/peering.go, there
// used for inter-server state sync) at this purely ambient concern, so it
// doesn't compete with spec.md §4.8's mandated line-oriented S2S burst
// protocol. No .proto sources ship in the retrieval pack and the core
// must never run a code generator, so the service descriptor and message
// types below are hand-written Go structs marshaled through a JSON
// grpc/encoding.Codec rather than protobuf-generated stubs.
package adminapi

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered as the gRPC content-subtype: a client dialing
// with grpc.CallContentSubtype(codecName) speaks this codec instead of
// protobuf's default.
const codecName = "json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec by
// marshaling the hand-written request/response structs as JSON instead of
// protobuf wire bytes — the escape hatch real gRPC-Go programs reach for
// when the wire format doesn't need to be cross-language-compact and
// protoc isn't available.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("adminapi: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("adminapi: unmarshal into %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
