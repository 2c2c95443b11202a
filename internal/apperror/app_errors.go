package apperror

import "errors"

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrMatchFull     = errors.New("match is full")
	ErrInvalidInput  = errors.New("invalid input")
	ErrMoveRejected  = errors.New("move rejected")

	ErrMatchNotStarted = errors.New("match is waiting for a guest")
	ErrNotParticipant  = errors.New("connection is not part of the match")
	ErrGameFinished    = errors.New("game is already finished")
	ErrNotYourTurn     = errors.New("it's not your turn")
	ErrCellOccupied    = errors.New("cell is already occupied")
	ErrInvalidCell     = errors.New("invalid cell index")
)

// Wire codes reported back to the originating client.
const (
	CodeNotFound     = "NotFound"
	CodeFull         = "Full"
	CodeRejected     = "Rejected"
	CodeInvalidInput = "InvalidInput"
	CodeInternal     = "Internal"
)

// Code maps an error onto its wire code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrMatchNotFound):
		return CodeNotFound
	case errors.Is(err, ErrMatchFull):
		return CodeFull
	case errors.Is(err, ErrMoveRejected):
		return CodeRejected
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}
