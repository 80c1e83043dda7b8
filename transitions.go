package streamplayer

import "fmt"

// op is a command applied to a player by its goroutine.
type op int

const (
	opAttach op = iota
	opPlay
	opPause
	opStop
	opSeek
	opInfo
)

func (o op) String() string {
	switch o {
	case opAttach:
		return "attach"
	case opPlay:
		return "play"
	case opPause:
		return "pause"
	case opStop:
		return "stop"
	case opSeek:
		return "seek"
	case opInfo:
		return "info"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

type transitionKey struct {
	from PlaybackState
	op   op
}

// transitions is the complete table of accepted state-changing commands.
// Anything missing is rejected with KindInvalidState. Destroyed has no
// entries: destroy is handled by the registry, not by a command.
var transitions = map[transitionKey]PlaybackState{
	{StateCreated, opAttach}: StateWindowed,
	{StateCreated, opPlay}:   StatePlaying,
	{StateCreated, opStop}:   StateStopped,

	{StateWindowed, opAttach}: StateWindowed,
	{StateWindowed, opPlay}:   StatePlaying,
	{StateWindowed, opStop}:   StateStopped,

	{StatePlaying, opPlay}:  StatePlaying,
	{StatePlaying, opPause}: StatePaused,
	{StatePlaying, opStop}:  StateStopped,
	{StatePlaying, opSeek}:  StatePlaying,

	{StatePaused, opPlay}:  StatePlaying,
	{StatePaused, opPause}: StatePaused,
	{StatePaused, opStop}:  StateStopped,
	{StatePaused, opSeek}:  StatePaused,

	{StateStopped, opAttach}: StateStopped,
	{StateStopped, opPlay}:   StatePlaying,
	{StateStopped, opStop}:   StateStopped,
}

// nextState returns the state reached by applying o in from.
func nextState(from PlaybackState, o op) (PlaybackState, bool) {
	to, ok := transitions[transitionKey{from, o}]
	return to, ok
}
