package aggregate

import "github.com/pkg/errors"

var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// State is the run lifecycle. It only moves forward.
type State int

const (
	Starting State = iota
	Running
	Draining
	Finishing
)

func (s State) String() string {
	switch s {
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Draining:
		return "DRAINING"
	case Finishing:
		return "FINISHING"
	default:
		return "UNKNOWN"
	}
}
