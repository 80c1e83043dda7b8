package gstreamer

/*
#cgo pkg-config: gstreamer-1.0 gstreamer-video-1.0
#include <gst/gst.h>
#include <gst/video/videooverlay.h>

// Binds handle to elem, or to the overlay child of a bin sink such as
// autovideosink. Children of auto sinks only exist from READY on.
static gboolean player_set_window_handle(gpointer element, guintptr handle) {
	GstElement *elem = GST_ELEMENT(element);
	GstElement *target = NULL;

	if (GST_IS_VIDEO_OVERLAY(elem)) {
		target = GST_ELEMENT(gst_object_ref(elem));
	} else if (GST_IS_BIN(elem)) {
		target = gst_bin_get_by_interface(GST_BIN(elem), GST_TYPE_VIDEO_OVERLAY);
	}
	if (target == NULL) {
		return FALSE;
	}

	gst_video_overlay_set_window_handle(GST_VIDEO_OVERLAY(target), handle);
	gst_object_unref(target);
	return TRUE;
}

static void player_expose(gpointer element) {
	GstElement *elem = GST_ELEMENT(element);
	GstElement *target = NULL;

	if (GST_IS_VIDEO_OVERLAY(elem)) {
		target = GST_ELEMENT(gst_object_ref(elem));
	} else if (GST_IS_BIN(elem)) {
		target = gst_bin_get_by_interface(GST_BIN(elem), GST_TYPE_VIDEO_OVERLAY);
	}
	if (target == NULL) {
		return;
	}

	gst_video_overlay_expose(GST_VIDEO_OVERLAY(target));
	gst_object_unref(target);
}
*/
import "C"

import (
	"errors"

	"github.com/tinyzimmer/go-gst/gst"
)

var errNoOverlay = errors.New("video sink does not implement GstVideoOverlay")

// setWindowHandle points the sink's overlay at a native window. A zero
// handle makes the sink create its own window.
func setWindowHandle(sink *gst.Element, handle uintptr) error {
	if C.player_set_window_handle(C.gpointer(sink.Unsafe()), C.guintptr(handle)) == C.FALSE {
		return errNoOverlay
	}
	return nil
}

// expose asks the sink to redraw the last frame.
func expose(sink *gst.Element) {
	C.player_expose(C.gpointer(sink.Unsafe()))
}
