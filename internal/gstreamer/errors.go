package gstreamer

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/pipeline"
)

// classifyGError analyzes a GStreamer error and categorizes it.
//
// go-gst's GError does not expose the domain, so classification relies on
// message heuristics.
func classifyGError(gerr *gst.GError) pipeline.ErrorCategory {
	if gerr == nil {
		return pipeline.CategoryUnknown
	}
	return Classify(gerr.Error(), gerr.DebugString())
}

// Classify categorizes an error by its message and debug string.
//
// Auth is checked first (most specific), then codec, then network.
func Classify(errMsg, debugStr string) pipeline.ErrorCategory {
	combined := strings.ToLower(errMsg) + " " + strings.ToLower(debugStr)

	switch {
	case containsAny(combined, authKeywords):
		return pipeline.CategoryAuth
	case containsAny(combined, codecKeywords):
		return pipeline.CategoryCodec
	case containsAny(combined, networkKeywords):
		return pipeline.CategoryNetwork
	default:
		return pipeline.CategoryUnknown
	}
}

var authKeywords = []string{
	"unauthorized",
	"401",
	"403",
	"forbidden",
	"authentication",
	"credentials",
	"password",
	"username",
}

var codecKeywords = []string{
	"codec",
	"decode",
	"encode",
	"format",
	"negotiation",
	"caps",
	"h264",
	"h265",
	"mjpeg",
	"jpeg",
	"not negotiated",
	"not-negotiated",
	"no decoder",
	"missing plugin",
}

var networkKeywords = []string{
	"connection",
	"timeout",
	"timed out",
	"unreachable",
	"network",
	"dns",
	"resolve",
	"socket",
	"tcp",
	"udp",
	"rtsp",
	"not found",
	"could not connect",
	"failed to connect",
	"could not open resource",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
