package session

import "fmt"

type State int32

const (
	StateIdle State = iota
	StateOpening
	StateStreaming
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Live reports whether the session still holds or may acquire resources.
func (s State) Live() bool {
	return s != StateClosed
}
