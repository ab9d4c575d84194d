package rules

import "errors"

var (
	ErrGameOver    = errors.New("game already over")
	ErrIllegalMove = errors.New("illegal move")
	ErrInvalidFEN  = errors.New("invalid FEN")
)

// MoveError carries the rejected move text.
type MoveError struct {
	Move string
	Err  error
}

func (e *MoveError) Error() string { return e.Err.Error() + ": " + e.Move }

func (e *MoveError) Unwrap() error { return e.Err }
