package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds shared by the engine and its callers. Branch with errors.Is.
var (
	ErrInvalidParameters     = errors.New("invalid parameters")
	ErrInfeasibleConstraints = errors.New("infeasible constraints")
	ErrCapacityExceeded      = errors.New("capacity exceeded")
	ErrJobNotFound           = errors.New("job not found")
	ErrBackpressure          = errors.New("verification queue full")
)

// Error carries the failing operation and one of the sentinel kinds above.
type Error struct {
	Op   string
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the sentinel kind wrapped by err, or nil when err carries none.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrInvalidParameters,
		ErrInfeasibleConstraints,
		ErrCapacityExceeded,
		ErrJobNotFound,
		ErrBackpressure,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
