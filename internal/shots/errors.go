package shots

import (
	"errors"
	"fmt"
)

var (
	// ErrNoShotsDetected means detection produced no usable cut; retry with another threshold.
	ErrNoShotsDetected = errors.New("no shots detected")
	// ErrInvalidRange rejects a setter that would leave a shot shorter than one frame.
	ErrInvalidRange = errors.New("invalid frame range")
	// ErrBoundaryCollision rejects a move that would make shots overlap.
	ErrBoundaryCollision = errors.New("shots would overlap")
	ErrNoBoundary        = errors.New("no shot at frame")
	ErrFirstShot         = errors.New("first shot must start at frame 0")
	ErrLastShot          = errors.New("last shot must cover the final frame")
	ErrUnknownShot       = errors.New("shot does not belong to this segmentation")
	ErrInvalidSession    = errors.New("invalid session data")
)

// InvariantViolation reports shots that no longer partition the frame range.
// Renumber panics with it: it always indicates a bug in an edit operation.
type InvariantViolation struct {
	Position int
	Reason   string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("partition invariant violated at shot %d: %s", e.Position, e.Reason)
}
