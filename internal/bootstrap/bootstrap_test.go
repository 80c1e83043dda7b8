package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/config"
)

func TestBackendConfig(t *testing.T) {
	cfg, err := config.Parse([]byte("gstreamer:\n  latency_ms: 250\n  protocols: udp+tcp\n  video_sink: glimagesink\n"))
	require.NoError(t, err)

	g := BackendConfig(cfg, nil)
	assert.Equal(t, 250*time.Millisecond, g.Latency)
	assert.Equal(t, "udp+tcp", g.Protocols)
	assert.Equal(t, "glimagesink", g.VideoSink)
	assert.Equal(t, 5*time.Second, g.TCPTimeout)
	assert.Equal(t, uint(5), g.Retry)
}

func TestEmitterConfig(t *testing.T) {
	cfg, err := config.Parse([]byte("mqtt:\n  broker: broker.local:1883\n  topic: care/players\n  qos: 1\n  encoding: msgpack\n"))
	require.NoError(t, err)

	e := EmitterConfig(cfg, nil)
	assert.Equal(t, "broker.local:1883", e.Broker)
	assert.Equal(t, "care/players", e.Topic)
	assert.Equal(t, byte(1), e.QoS)
	assert.Equal(t, "msgpack", e.Encoding)
}

func TestStartEventForwarding_Disabled(t *testing.T) {
	stop, err := StartEventForwarding(context.Background(), config.Default(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, stop)
	stop()
}
