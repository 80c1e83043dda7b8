package gstreamer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/pipeline"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		debug string
		want  pipeline.ErrorCategory
	}{
		{
			name:  "auth beats network",
			msg:   "Unauthorized",
			debug: "gstrtspsrc.c(6795): rtsp connection: 401 Unauthorized",
			want:  pipeline.CategoryAuth,
		},
		{
			name: "missing decoder",
			msg:  "Your GStreamer installation is missing a plug-in.",
			debug: "gstdecodebin2.c(4719): ../gst/playback/gstdecodebin2.c: " +
				"no suitable plugins found: Missing decoder: H.265 (h265)",
			want: pipeline.CategoryCodec,
		},
		{
			name:  "not negotiated",
			msg:   "Internal data stream error.",
			debug: "streaming stopped, reason not-negotiated (-4)",
			want:  pipeline.CategoryCodec,
		},
		{
			name:  "connect refused",
			msg:   "Could not open resource for reading and writing.",
			debug: "gstrtspsrc.c(8076): Failed to connect. (Generic error)",
			want:  pipeline.CategoryNetwork,
		},
		{
			name:  "tcp timeout",
			msg:   "Could not read from resource.",
			debug: "Could not receive message. (Timeout while waiting for server response)",
			want:  pipeline.CategoryNetwork,
		},
		{
			name:  "unclassified",
			msg:   "Internal data stream error.",
			debug: "streaming stopped, reason error (-5)",
			want:  pipeline.CategoryUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.msg, tt.debug))
		})
	}
}

func TestClassifyGErrorNil(t *testing.T) {
	assert.Equal(t, pipeline.CategoryUnknown, classifyGError(nil))
}
