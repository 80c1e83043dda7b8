package streamplayer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	cause := errors.New("Could not open resource for reading and writing.")
	err := newError(KindStreamUnavailable, "play", Handle(0x100000001), "network error", cause)

	assert.Equal(t,
		"stream-player: play 0x100000001: stream unavailable: network error: Could not open resource for reading and writing.",
		err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestError_IsMatchesKindSentinels(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindInvalidHandle, "stop", 5, "", nil))

	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.NotErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, KindInvalidHandle, KindOf(err))
}

func TestKindOf_Unknown(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestErrorKind_String(t *testing.T) {
	tests := map[ErrorKind]string{
		KindInvalidArgument:   "invalid_argument",
		KindInvalidHandle:     "invalid_handle",
		KindInvalidState:      "invalid_state",
		KindNoRenderTarget:    "no_render_target",
		KindStreamUnavailable: "stream_unavailable",
		KindPipelineFault:     "pipeline_fault",
		KindTimeout:           "timeout",
		KindEngineInitFailed:  "engine_init_failed",
		ErrorKind(99):         "unknown",
	}
	for kind, want := range tests {
		assert.Equal(t, want, kind.String())
	}
}
