package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactics-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactics-backend/internal/entity"
)

// NoEviction marks an outcome in which no mark left the board.
const NoEviction = -1

// Outcome is the result of an accepted move.
type Outcome struct {
	State   entity.GameState
	Evicted int
	Won     bool
}

// ApplyMove places a mark for player on cell. The given state is never modified.
func ApplyMove(state entity.GameState, player entity.Mark, cell int) (Outcome, error) {
	if err := validateMove(state, player, cell); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", apperror.ErrMoveRejected, err)
	}

	next := state.Clone()
	next.MoveCount++

	move := entity.Move{Position: cell, Sequence: next.MoveCount}
	history := next.MoveHistory.Of(player)

	candidate := make(entity.MoveHistory, 0, len(history)+1)
	candidate = append(candidate, history...)
	candidate = append(candidate, move)

	// a winning placement keeps every mark, the oldest one included
	if line, ok := WinningLine(candidate.Window()); ok {
		next.Board[cell] = player
		next.MoveHistory.Set(player, candidate)
		next.WinLine = &line
		next.Phase = entity.PhaseFinished

		return Outcome{State: next, Evicted: NoEviction, Won: true}, nil
	}

	evicted := NoEviction
	if len(history) >= entity.MaxMarks {
		oldest := history[0]
		next.Board[oldest.Position] = entity.EmptyCell
		evicted = oldest.Position
		candidate = candidate[len(candidate)-entity.MaxMarks:]
	}

	next.Board[cell] = player
	next.MoveHistory.Set(player, candidate)
	next.ActivePlayer = player.Opponent()

	return Outcome{State: next, Evicted: evicted}, nil
}

// validateMove - checks if the move is valid.
func validateMove(state entity.GameState, player entity.Mark, cell int) error {
	if !state.IsPlaying() {
		return apperror.ErrGameFinished
	}

	if cell < 0 || cell >= len(state.Board) {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if state.Board[cell] != entity.EmptyCell {
		return apperror.ErrCellOccupied
	}

	if state.ActivePlayer != player {
		return apperror.ErrNotYourTurn
	}

	return nil
}

// WinningLine reports the win line formed by exactly three positions, in any order.
func WinningLine(positions []int) (entity.WinLine, bool) {
	if len(positions) != entity.MaxMarks {
		return entity.WinLine{}, false
	}

	for _, combo := range entity.WinCombos {
		if contains(positions, combo[0]) && contains(positions, combo[1]) && contains(positions, combo[2]) {
			return combo, true
		}
	}

	return entity.WinLine{}, false
}

// HasWindowWin reports whether a history of exactly three moves forms a line.
func HasWindowWin(history entity.MoveHistory) bool {
	if len(history) != entity.MaxMarks {
		return false
	}

	_, ok := WinningLine(history.Window())
	return ok
}

// FadingCell returns the mark the side to move loses on its next
// non-winning placement.
func FadingCell(state entity.GameState) (int, bool) {
	if !state.IsPlaying() {
		return NoEviction, false
	}

	history := state.MoveHistory.Of(state.ActivePlayer)
	if len(history) < entity.MaxMarks {
		return NoEviction, false
	}

	return history[0].Position, true
}

func contains(positions []int, cell int) bool {
	for _, position := range positions {
		if position == cell {
			return true
		}
	}
	return false
}
