package gstreamer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/e7canasta/orion-care-sensor/modules/stream-player/internal/pipeline"
)

// rtspsrc "protocols" flags (GstRTSPLowerTrans).
const (
	protoUDP      = 1
	protoUDPMcast = 2
	protoTCP      = 4
	protoHTTP     = 16
)

// parseProtocols turns "tcp", "udp+tcp" or "tcp,http" into rtspsrc flags.
// Empty means TCP only.
func parseProtocols(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return protoTCP, nil
	}

	flags := 0
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' || r == '|' }) {
		switch strings.TrimSpace(part) {
		case "udp":
			flags |= protoUDP
		case "udp-mcast", "multicast":
			flags |= protoUDPMcast
		case "tcp":
			flags |= protoTCP
		case "http":
			flags |= protoHTTP
		default:
			return 0, fmt.Errorf("unknown rtsp protocol %q", part)
		}
	}
	if flags == 0 {
		return 0, fmt.Errorf("no rtsp protocol in %q", s)
	}
	return flags, nil
}

// defaultVideoSink picks a sink that implements GstVideoOverlay on goos.
func defaultVideoSink(goos string) string {
	switch goos {
	case "windows":
		return "d3d11videosink"
	case "darwin":
		return "glimagesink"
	default:
		return "xvimagesink"
	}
}

// testPatterns maps testsrc://<pattern> to videotestsrc "pattern" values.
var testPatterns = map[string]int{
	"smpte":    0,
	"snow":     1,
	"black":    2,
	"white":    3,
	"red":      4,
	"green":    5,
	"blue":     6,
	"smpte75":  13,
	"ball":     18,
	"smpte100": 19,
	"bar":      20,
	"colors":   24,
}

func testPattern(name string) (int, error) {
	if name == "" {
		return 0, nil
	}
	p, ok := testPatterns[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown test pattern %q", name)
	}
	return p, nil
}

// parseVideoCaps extracts size, framerate and format from a fixed caps
// string such as
//
//	video/x-raw, format=(string)BGRx, width=(int)1280, height=(int)720, framerate=(fraction)25/1
func parseVideoCaps(s string) (pipeline.VideoInfo, bool) {
	var info pipeline.VideoInfo
	if !strings.HasPrefix(s, "video/") {
		return info, false
	}

	fields := strings.Split(s, ",")
	for _, f := range fields[1:] {
		key, val, ok := strings.Cut(strings.TrimSpace(f), "=")
		if !ok {
			continue
		}
		// strip the "(type)" prefix
		if strings.HasPrefix(val, "(") {
			if i := strings.IndexByte(val, ')'); i >= 0 {
				val = val[i+1:]
			}
		}
		val = strings.TrimSuffix(strings.TrimSpace(val), ";")

		switch key {
		case "width":
			info.Width, _ = strconv.Atoi(val)
		case "height":
			info.Height, _ = strconv.Atoi(val)
		case "format":
			info.Format = val
		case "framerate":
			info.Framerate = parseFraction(val)
		}
	}
	return info, info.Width > 0 && info.Height > 0
}

func parseFraction(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
