package tictactoe

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactics-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactics-backend/internal/entity"
)

// play applies the moves in order, alternating X and O, and fails the test on any rejection.
func play(t *testing.T, cells ...int) Outcome {
	t.Helper()

	outcome := Outcome{State: entity.NewGameState(), Evicted: NoEviction}
	for _, cell := range cells {
		var err error
		outcome, err = ApplyMove(outcome.State, outcome.State.ActivePlayer, cell)
		require.NoError(t, err, "cell %d", cell)
	}
	return outcome
}

func positions(history entity.MoveHistory) []int {
	cells := make([]int, 0, len(history))
	for _, move := range history {
		cells = append(cells, move.Position)
	}
	return cells
}

func requireConsistent(t *testing.T, state entity.GameState) {
	t.Helper()

	if state.IsPlaying() {
		require.LessOrEqual(t, len(state.MoveHistory.X), entity.MaxMarks)
		require.LessOrEqual(t, len(state.MoveHistory.O), entity.MaxMarks)
	}

	var expected entity.Board
	for _, mark := range []entity.Mark{entity.PlayerX, entity.PlayerO} {
		for _, move := range state.MoveHistory.Of(mark) {
			require.Equal(t, entity.EmptyCell, expected[move.Position], "cell %d in two histories", move.Position)
			expected[move.Position] = mark
		}
	}
	require.Equal(t, expected, state.Board)
}

func TestApplyMove(t *testing.T) {
	t.Run("Successful Turn", func(t *testing.T) {
		// Given: a new game
		state := entity.NewGameState()

		// When: player X makes a valid turn
		outcome, err := ApplyMove(state, entity.PlayerX, 0)
		require.NoError(t, err)

		// Then: the mark is placed and the turn passes to O
		assert.Equal(t, entity.PlayerX, outcome.State.Board[0])
		assert.Equal(t, entity.PlayerO, outcome.State.ActivePlayer)
		assert.Equal(t, entity.MoveHistory{{Position: 0, Sequence: 1}}, outcome.State.MoveHistory.X)
		assert.Equal(t, NoEviction, outcome.Evicted)
		assert.False(t, outcome.Won)

		// And: the input state is untouched
		assert.Equal(t, entity.NewGameState(), state)
	})

	t.Run("Winning move with three marks", func(t *testing.T) {
		// Given: X holds 0 and 1, O holds 3 and 4
		// When: X plays 2
		outcome := play(t, 0, 3, 1, 4, 2)

		// Then: X wins on the top row and keeps every mark
		require.True(t, outcome.Won)
		require.NotNil(t, outcome.State.WinLine)
		assert.Equal(t, entity.WinLine{0, 1, 2}, *outcome.State.WinLine)
		assert.Equal(t, entity.PhaseFinished, outcome.State.Phase)
		assert.Equal(t, []int{0, 1, 2}, positions(outcome.State.MoveHistory.X))
		assert.Equal(t, NoEviction, outcome.Evicted)

		// And: the turn does not pass
		assert.Equal(t, entity.PlayerX, outcome.State.ActivePlayer)
		requireConsistent(t, outcome.State)
	})

	t.Run("Fourth move evicts the oldest mark", func(t *testing.T) {
		// Given: X holds 0, 1 and 3 (no line) and O holds 4, 5, 7
		before := play(t, 0, 4, 1, 5, 3, 7)
		require.Equal(t, []int{0, 1, 3}, positions(before.State.MoveHistory.X))

		// When: X plays 8
		outcome, err := ApplyMove(before.State, entity.PlayerX, 8)
		require.NoError(t, err)

		// Then: cell 0 is cleared and X keeps 1, 3 and 8
		assert.Equal(t, 0, outcome.Evicted)
		assert.Equal(t, entity.EmptyCell, outcome.State.Board[0])
		assert.Equal(t, []int{1, 3, 8}, positions(outcome.State.MoveHistory.X))
		for _, cell := range []int{1, 3, 8} {
			assert.Equal(t, entity.PlayerX, outcome.State.Board[cell])
		}
		assert.Equal(t, entity.PlayerO, outcome.State.ActivePlayer)
		requireConsistent(t, outcome.State)
	})

	t.Run("Winning fourth move suppresses eviction", func(t *testing.T) {
		// Given: X holds 6, 1, 2 and O holds 3, 4, 8; X to move
		before := play(t, 6, 3, 1, 4, 2, 8)
		require.Equal(t, entity.PlayerX, before.State.ActivePlayer)

		// When: X plays 0, so the window 1, 2, 0 is the top row
		outcome, err := ApplyMove(before.State, entity.PlayerX, 0)
		require.NoError(t, err)

		// Then: X wins and the oldest mark on 6 stays on the board
		require.True(t, outcome.Won)
		assert.Equal(t, entity.WinLine{0, 1, 2}, *outcome.State.WinLine)
		assert.Equal(t, entity.PlayerX, outcome.State.Board[6])
		assert.Equal(t, NoEviction, outcome.Evicted)
		assert.Equal(t, []int{6, 1, 2, 0}, positions(outcome.State.MoveHistory.X))
		requireConsistent(t, outcome.State)
	})

	t.Run("Evicted mark does not count towards a line", func(t *testing.T) {
		// Given: X holds 0, 1, 5 and O holds 3, 4, 8; the top row needs 2 but 0 is oldest
		before := play(t, 0, 3, 1, 4, 5, 8)

		// When: X plays 2, the window is 1, 5, 2 which is no line
		outcome, err := ApplyMove(before.State, entity.PlayerX, 2)
		require.NoError(t, err)

		// Then: no win, and cell 0 is evicted
		assert.False(t, outcome.Won)
		assert.Equal(t, 0, outcome.Evicted)
		assert.Nil(t, outcome.State.WinLine)
		requireConsistent(t, outcome.State)
	})
}

func TestApplyMove_Rejections(t *testing.T) {
	t.Run("Error on Cell Already Occupied", func(t *testing.T) {
		// Given: a game where cell 0 is occupied by player X
		before := play(t, 0)

		// When: player O tries to move to the same cell
		_, err := ApplyMove(before.State, entity.PlayerO, 0)

		// Then: the move is rejected as occupied
		require.ErrorIs(t, err, apperror.ErrMoveRejected)
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
	})

	t.Run("Error on Playing Out of Turn", func(t *testing.T) {
		_, err := ApplyMove(entity.NewGameState(), entity.PlayerO, 1)

		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})

	t.Run("Occupancy is checked before turn order", func(t *testing.T) {
		before := play(t, 4)

		_, err := ApplyMove(before.State, entity.PlayerX, 4)

		require.ErrorIs(t, err, apperror.ErrCellOccupied)
	})

	t.Run("Invalid Cell", func(t *testing.T) {
		for _, cell := range []int{-1, 9, 20} {
			_, err := ApplyMove(entity.NewGameState(), entity.PlayerX, cell)

			assert.ErrorIs(t, err, apperror.ErrInvalidCell)
		}
	})

	t.Run("Move After Game Finished", func(t *testing.T) {
		// Given: a game X has already won
		finished := play(t, 0, 3, 1, 4, 2)

		// When: player O tries to make a move
		_, err := ApplyMove(finished.State, entity.PlayerO, 8)

		// Then: the game is over
		assert.ErrorIs(t, err, apperror.ErrGameFinished)
	})
}

func TestApplyMove_RandomPlay(t *testing.T) {
	rng := rand.New(rand.NewSource(42)) //nolint: gosec // deterministic test data

	for game := 0; game < 300; game++ {
		state := entity.NewGameState()

		for turn := 0; turn < 60 && state.IsPlaying(); turn++ {
			mover := state.ActivePlayer
			before := state.Clone()

			// a rejected move leaves the state untouched
			if occupied := occupiedCell(state.Board); occupied >= 0 {
				_, err := ApplyMove(state, mover, occupied)
				require.ErrorIs(t, err, apperror.ErrCellOccupied)
				require.Equal(t, before, state)
			}
			free := state.Board.EmptyCells()
			_, err := ApplyMove(state, mover.Opponent(), free[0])
			require.ErrorIs(t, err, apperror.ErrNotYourTurn)
			require.Equal(t, before, state)

			cell := free[rng.Intn(len(free))]
			outcome, err := ApplyMove(state, mover, cell)
			require.NoError(t, err)

			requireConsistent(t, outcome.State)

			if outcome.Won {
				// the three most recent positions equal the win line
				window := outcome.State.MoveHistory.Of(mover).Window()
				line := outcome.State.WinLine[:]
				sort.Ints(window)
				sorted := append([]int(nil), line...)
				sort.Ints(sorted)
				require.Equal(t, sorted, window)
				require.Equal(t, NoEviction, outcome.Evicted)
				require.Equal(t, mover, outcome.State.ActivePlayer)
				require.Equal(t, entity.PhaseFinished, outcome.State.Phase)
			} else {
				require.Equal(t, mover.Opponent(), outcome.State.ActivePlayer)
			}

			state = outcome.State
		}
	}
}

func occupiedCell(board entity.Board) int {
	for i, cell := range board {
		if cell != entity.EmptyCell {
			return i
		}
	}
	return -1
}

func TestWinningLine(t *testing.T) {
	t.Run("Order does not matter", func(t *testing.T) {
		line, ok := WinningLine([]int{8, 0, 4})

		require.True(t, ok)
		assert.Equal(t, entity.WinLine{0, 4, 8}, line)
	})

	t.Run("Needs exactly three positions", func(t *testing.T) {
		_, ok := WinningLine([]int{0, 1})
		assert.False(t, ok)

		_, ok = WinningLine([]int{0, 1, 2, 3})
		assert.False(t, ok)
	})

	t.Run("Non line", func(t *testing.T) {
		_, ok := WinningLine([]int{0, 1, 3})
		assert.False(t, ok)
	})
}

func TestFadingCell(t *testing.T) {
	t.Run("Side to move with three marks fades its oldest", func(t *testing.T) {
		// Given: X holds 0, 1, 3 and it is X's turn again
		outcome := play(t, 0, 4, 1, 5, 3, 7)

		// When: asking which mark fades next
		cell, ok := FadingCell(outcome.State)

		// Then: X's oldest mark is reported
		require.True(t, ok)
		assert.Equal(t, 0, cell)
	})

	t.Run("No fading cell with fewer than three marks", func(t *testing.T) {
		outcome := play(t, 0, 4)

		_, ok := FadingCell(outcome.State)

		assert.False(t, ok)
	})

	t.Run("No fading cell once the game is over", func(t *testing.T) {
		outcome := play(t, 0, 3, 1, 4, 2)

		_, ok := FadingCell(outcome.State)

		assert.False(t, ok)
	})
}
