package streamplayer

import "testing"

func TestNextState(t *testing.T) {
	states := []PlaybackState{StateCreated, StateWindowed, StatePlaying, StatePaused, StateStopped, StateDestroyed}
	ops := []op{opAttach, opPlay, opPause, opStop, opSeek}

	// "" marks a rejected transition
	want := map[PlaybackState]map[op]string{
		StateCreated:   {opAttach: "windowed", opPlay: "playing", opStop: "stopped"},
		StateWindowed:  {opAttach: "windowed", opPlay: "playing", opStop: "stopped"},
		StatePlaying:   {opPlay: "playing", opPause: "paused", opStop: "stopped", opSeek: "playing"},
		StatePaused:    {opPlay: "playing", opPause: "paused", opStop: "stopped", opSeek: "paused"},
		StateStopped:   {opAttach: "stopped", opPlay: "playing", opStop: "stopped"},
		StateDestroyed: {},
	}

	for _, from := range states {
		for _, o := range ops {
			to, ok := nextState(from, o)
			expected := want[from][o]

			if expected == "" {
				if ok {
					t.Errorf("%s --%s--> %s accepted, want rejection", from, o, to)
				}
				continue
			}
			if !ok {
				t.Errorf("%s --%s--> rejected, want %s", from, o, expected)
				continue
			}
			if to.String() != expected {
				t.Errorf("%s --%s--> %s, want %s", from, o, to, expected)
			}
		}
	}
}
