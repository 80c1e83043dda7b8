package gstreamer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProtocols(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", protoTCP},
		{"tcp", protoTCP},
		{"udp", protoUDP},
		{"udp+tcp", protoUDP | protoTCP},
		{"TCP, HTTP", protoTCP | protoHTTP},
		{"udp|udp-mcast|tcp|http", 23},
	}
	for _, tt := range tests {
		got, err := parseProtocols(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseProtocols("quic")
	assert.Error(t, err)
	_, err = parseProtocols("+,")
	assert.Error(t, err)
}

func TestDefaultVideoSink(t *testing.T) {
	assert.Equal(t, "d3d11videosink", defaultVideoSink("windows"))
	assert.Equal(t, "glimagesink", defaultVideoSink("darwin"))
	assert.Equal(t, "xvimagesink", defaultVideoSink("linux"))
	assert.Equal(t, "xvimagesink", defaultVideoSink("freebsd"))
}

func TestTestPattern(t *testing.T) {
	p, err := testPattern("")
	require.NoError(t, err)
	assert.Equal(t, 0, p)

	p, err = testPattern("Ball")
	require.NoError(t, err)
	assert.Equal(t, 18, p)

	_, err = testPattern("plaid")
	assert.Error(t, err)
}

func TestParseVideoCaps(t *testing.T) {
	info, ok := parseVideoCaps("video/x-raw, format=(string)BGRx, width=(int)1280, height=(int)720, " +
		"interlace-mode=(string)progressive, pixel-aspect-ratio=(fraction)1/1, framerate=(fraction)30000/1001")
	require.True(t, ok)
	assert.Equal(t, 1280, info.Width)
	assert.Equal(t, 720, info.Height)
	assert.Equal(t, "BGRx", info.Format)
	assert.InDelta(t, 29.97, info.Framerate, 0.01)

	info, ok = parseVideoCaps("video/x-raw,format=I420,width=640,height=480,framerate=25/1")
	require.True(t, ok)
	assert.Equal(t, 640, info.Width)
	assert.Equal(t, 25.0, info.Framerate)

	_, ok = parseVideoCaps("audio/x-raw, rate=(int)48000, channels=(int)2")
	assert.False(t, ok)

	_, ok = parseVideoCaps("video/x-raw, format=(string)NV12")
	assert.False(t, ok, "no size")
}

func TestParseFraction(t *testing.T) {
	assert.Equal(t, 25.0, parseFraction("25/1"))
	assert.Equal(t, 0.5, parseFraction("1/2"))
	assert.Equal(t, 0.0, parseFraction("0/1"))
	assert.Equal(t, 0.0, parseFraction("5/0"))
	assert.Equal(t, 0.0, parseFraction("x/1"))
	assert.Equal(t, 12.0, parseFraction("12"))
}
