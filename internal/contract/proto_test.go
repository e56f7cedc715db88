package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"

	"github.com/simone-weiss/ankaios/internal/wire"
)

// expectedStreams defines the contract for the wire transport's bidi
// streaming surface. If a stream is removed or renamed, this test fails,
// catching a breaking change to the agent/CLI wire protocol.
var expectedStreams = []string{"AgentConnection", "CliConnection"}

func TestServiceDescSurface(t *testing.T) {
	desc := wire.ServiceDesc

	assert.Equal(t, wire.ServiceName, desc.ServiceName)
	assert.Equal(t, "ankaios.proto", desc.Metadata)

	actual := make(map[string]bool, len(desc.Streams))
	for _, s := range desc.Streams {
		actual[s.StreamName] = true
	}

	for _, name := range expectedStreams {
		assert.True(t, actual[name], "stream %s should exist on %s", name, desc.ServiceName)
	}

	for _, s := range desc.Streams {
		assert.True(t, s.ServerStreams, "stream %s should be bidirectional (server half)", s.StreamName)
		assert.True(t, s.ClientStreams, "stream %s should be bidirectional (client half)", s.StreamName)
	}
}

func TestServiceDescHasNoUnaryMethods(t *testing.T) {
	var desc grpc.ServiceDesc = wire.ServiceDesc
	assert.Empty(t, desc.Methods, "the control service is streaming-only; a unary method here would be a protocol change")
}
