package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilities_Accepts(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
		size int
		want bool
	}{
		{"unlimited", Capabilities{}, 10 << 20, true},
		{"under limit", Capabilities{MaxMessageSize: 1024}, 512, true},
		{"at limit", Capabilities{MaxMessageSize: 1024}, 1024, true},
		{"over limit", Capabilities{MaxMessageSize: 1024}, 1025, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.caps.Accepts(tt.size))
		})
	}
}

func TestPredefinedCapabilities(t *testing.T) {
	all := []Capabilities{
		ChannelCapabilities,
		RabbitMQCapabilities,
		NATSCapabilities,
		NATSJetStreamCapabilities,
		KafkaCapabilities,
		AWSCapabilities,
		HTTPCapabilities,
		IOCapabilities,
	}
	seen := map[string]bool{}
	for _, caps := range all {
		assert.NotEmpty(t, caps.Name)
		assert.False(t, seen[caps.Name], "duplicate name %s", caps.Name)
		seen[caps.Name] = true
	}

	assert.True(t, RabbitMQCapabilities.SupportsPatternRouting)
	assert.False(t, RabbitMQCapabilities.Persistent)
	assert.Equal(t, int64(1<<20), KafkaCapabilities.MaxMessageSize)
}
