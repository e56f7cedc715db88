// Package wire implements the Ankaios control protocol: the two tagged-union
// envelopes ToServer and FromServer carried over the AgentConnection and
// CliConnection bidirectional gRPC streams.
//
// # Wire format
//
// Message bodies are length-prefixed protobuf-encoded values. Rather than
// depend on a protoc-generated reflection stack, every message type in this
// package implements Marshal/Unmarshal directly against
// google.golang.org/protobuf/encoding/protowire's low-level primitives. Tag
// numbers (tags.go) and enum values (types.go) are normative: they
// must never be renumbered, since doing so breaks wire compatibility with
// any peer built against an earlier revision. ankaios.proto documents the
// same schema as a reference IDL comment; it is not compiled by this
// package.
//
// # Service
//
// Service.go hand-authors the grpc.ServiceDesc that protoc-gen-go-grpc would
// normally generate for a service with two bidirectional streaming methods,
// AgentConnection and CliConnection, both carrying ToServer upstream and
// FromServer downstream.
package wire
