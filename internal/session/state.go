package session

import (
	"fmt"

	apperrors "github.com/tatianab/life-restart/internal/errors"
)

// Phase is the lifecycle state of a session.
type Phase int

const (
	PhaseNew Phase = iota
	PhaseAllocated
	PhaseRunning
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseAllocated:
		return "allocated"
	case PhaseRunning:
		return "running"
	case PhaseTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// IsTerminal reports whether no further transitions are possible.
func (p Phase) IsTerminal() bool { return p == PhaseTerminated }

func isAllowedTransition(from, to Phase) bool {
	switch from {
	case PhaseNew:
		return to == PhaseAllocated
	case PhaseAllocated:
		return to == PhaseRunning || to == PhaseTerminated
	case PhaseRunning:
		return to == PhaseRunning || to == PhaseTerminated
	default:
		return false
	}
}

// transition validates a phase change for the named operation.
func transition(id, op string, from, to Phase) error {
	if !isAllowedTransition(from, to) {
		return invalidState(id, op, from)
	}
	return nil
}

func invalidState(id, op string, phase Phase) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidState,
		fmt.Sprintf("%s not allowed in phase %s", op, phase),
		map[string]string{"session": id, "operation": op, "phase": phase.String()})
}
