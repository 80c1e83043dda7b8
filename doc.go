/*
Package streamplayer plays network video streams into caller-owned native
windows and exposes a small synchronous control surface over opaque handles.

# Overview

Each player is created from a stream locator (rtsp://, http://, file://,
testsrc://...) and lives behind a generation-tagged Handle. A dedicated
goroutine owns the player's decode/render pipeline; control calls are sent
to it as commands and block until the pipeline acknowledges them or the
control timeout expires.

# Quick Start

	backend, err := gstreamer.NewBackend(gstreamer.DefaultConfig())
	if err != nil {
	    log.Fatal(err)
	}
	engine, err := streamplayer.New(streamplayer.DefaultConfig(), backend)
	if err != nil {
	    log.Fatal(err)
	}
	defer engine.Close(context.Background())

	h, err := engine.Create("rtsp://192.168.1.100/stream")
	if err != nil {
	    log.Fatal(err)
	}
	_ = engine.Attach(h, streamplayer.RenderTarget(windowID))
	if err := engine.Play(h); err != nil {
	    msg, _ := engine.LastError()
	    log.Println(msg)
	}

# State Machine

	Created ─attach→ Windowed ─play→ Playing ⇄ Paused
	   │                               │
	   └──────────── stop ───────────→ Stopped ─play→ Playing
	                                    destroy → (handle invalid)

play requires a render target. attach is accepted while the player is not
streaming (Created, Windowed, Stopped). Errors after playback started stop
the player and are reported as PipelineFault; there is no automatic
reconnect once the stream was acknowledged.

# Errors

Every failed call returns a *Error carrying an ErrorKind and writes the
message to the error channel, readable with LastError (most recent failure
of any player) and LastErrorFor (most recent failure of one player).
Reading never clears the channel.

# Thread Safety

All methods are safe for concurrent use. Calls on one handle are applied
in the order they were accepted; calls on different handles run in
parallel. Destroy waits until the pipeline is fully torn down; commands
pending on a destroyed player fail with InvalidHandle.
*/
package streamplayer
