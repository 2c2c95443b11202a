package service

import (
	"math"

	"github.com/rocketscienceinc/tictactics-backend/internal/entity"
	"github.com/rocketscienceinc/tictactics-backend/internal/tictactoe"
)

const (
	winScore = 10

	// bot always plays O and maximizes
	botMark = entity.PlayerO
)

// ChooseMove picks the cell O should play. It returns -1 only when the board has no empty cell.
func ChooseMove(board entity.Board, history entity.MoveHistories, depth int) int {
	root := entity.GameState{
		Board:        board,
		ActivePlayer: botMark,
		MoveHistory:  history.Clone(),
		Phase:        entity.PhasePlaying,
	}

	if cell, ok := immediateWin(root); ok {
		return cell
	}

	bestMove := -1
	bestScore := math.MinInt

	for _, cell := range root.Board.EmptyCells() {
		outcome, err := tictactoe.ApplyMove(root, botMark, cell)
		if err != nil {
			continue
		}

		// children scoring at or below the best so far never replace it,
		// so the running best is a safe lower bound for the window
		score := minimax(outcome.State, 0, depth, bestScore, math.MaxInt, false)
		if bestMove == -1 || score > bestScore {
			bestScore = score
			bestMove = cell
		}
	}

	return bestMove
}

func minimax(state entity.GameState, depth, maxDepth, alpha, beta int, maximizing bool) int {
	if tictactoe.HasWindowWin(state.MoveHistory.O) {
		return winScore - depth
	}
	if tictactoe.HasWindowWin(state.MoveHistory.X) {
		return -winScore + depth
	}
	if state.Board.IsFull() {
		return 0
	}
	if depth >= maxDepth {
		return evaluate(state.Board)
	}

	mover := entity.PlayerX
	if maximizing {
		mover = entity.PlayerO
	}
	state.ActivePlayer = mover

	if _, ok := immediateWin(state); ok {
		if maximizing {
			return winScore - depth
		}
		return -winScore + depth
	}

	if maximizing {
		best := math.MinInt
		for _, cell := range state.Board.EmptyCells() {
			outcome, err := tictactoe.ApplyMove(state, mover, cell)
			if err != nil {
				continue
			}

			best = max(best, minimax(outcome.State, depth+1, maxDepth, alpha, beta, false))
			alpha = max(alpha, best)
			if alpha >= beta {
				break
			}
		}
		return best
	}

	best := math.MaxInt
	for _, cell := range state.Board.EmptyCells() {
		outcome, err := tictactoe.ApplyMove(state, mover, cell)
		if err != nil {
			continue
		}

		best = min(best, minimax(outcome.State, depth+1, maxDepth, alpha, beta, true))
		beta = min(beta, best)
		if alpha >= beta {
			break
		}
	}
	return best
}

// immediateWin returns the first cell, in index order, that wins on the spot for the side to move.
func immediateWin(state entity.GameState) (int, bool) {
	mover := state.ActivePlayer
	history := state.MoveHistory.Of(mover)

	for _, cell := range state.Board.EmptyCells() {
		window := append(history.Window(), cell)
		if len(window) > entity.MaxMarks {
			window = window[len(window)-entity.MaxMarks:]
		}

		if _, ok := tictactoe.WinningLine(window); ok {
			return cell, true
		}
	}

	return -1, false
}

// evaluate scores the board lines only. Eviction is not taken into account.
func evaluate(board entity.Board) int {
	for _, combo := range entity.WinCombos {
		mark := board[combo[0]]
		if mark == entity.EmptyCell || board[combo[1]] != mark || board[combo[2]] != mark {
			continue
		}

		if mark == entity.PlayerO {
			return winScore
		}
		return -winScore
	}

	return 0
}
