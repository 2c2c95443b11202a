package entity

import (
	"errors"
	"fmt"
)

type Mark string

const (
	EmptyCell Mark = ""
	PlayerX   Mark = "X"
	PlayerO   Mark = "O"
)

type Phase string

const (
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

const (
	BoardSize = 9

	// MaxMarks is how many marks a player keeps on the board between turns.
	MaxMarks = 3
)

var (
	ErrInconsistentHistory = errors.New("move history is inconsistent")

	WinCombos = [8]WinLine{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}
)

// Opponent returns the other player's mark.
func (that Mark) Opponent() Mark {
	if that == PlayerX {
		return PlayerO
	}
	return PlayerX
}

func (that Mark) IsPlayer() bool {
	return that == PlayerX || that == PlayerO
}

type Board [BoardSize]Mark

// EmptyCells lists the free cells in index order.
func (that Board) EmptyCells() []int {
	cells := make([]int, 0, BoardSize)
	for i, cell := range that {
		if cell == EmptyCell {
			cells = append(cells, i)
		}
	}
	return cells
}

func (that Board) IsFull() bool {
	for _, cell := range that {
		if cell == EmptyCell {
			return false
		}
	}
	return true
}

type WinLine [3]int

type Move struct {
	Position int `json:"position"`
	Sequence int `json:"sequence"`
}

// MoveHistory is ordered oldest first.
type MoveHistory []Move

func (that MoveHistory) Clone() MoveHistory {
	clone := make(MoveHistory, len(that))
	copy(clone, that)
	return clone
}

// Window returns the positions of the last three moves.
func (that MoveHistory) Window() []int {
	start := len(that) - MaxMarks
	if start < 0 {
		start = 0
	}

	positions := make([]int, 0, MaxMarks)
	for _, move := range that[start:] {
		positions = append(positions, move.Position)
	}
	return positions
}

type MoveHistories struct {
	X MoveHistory `json:"X"`
	O MoveHistory `json:"O"`
}

func (that MoveHistories) Of(mark Mark) MoveHistory {
	if mark == PlayerX {
		return that.X
	}
	return that.O
}

func (that *MoveHistories) Set(mark Mark, history MoveHistory) {
	if mark == PlayerX {
		that.X = history
		return
	}
	that.O = history
}

func (that MoveHistories) Clone() MoveHistories {
	return MoveHistories{
		X: that.X.Clone(),
		O: that.O.Clone(),
	}
}

// Board rebuilds the board from both histories, rejecting histories that
// could not come out of a real game.
func (that MoveHistories) Board() (Board, error) {
	var board Board

	for _, mark := range []Mark{PlayerX, PlayerO} {
		history := that.Of(mark)
		if len(history) > MaxMarks {
			return Board{}, fmt.Errorf("%w: %s holds %d marks", ErrInconsistentHistory, mark, len(history))
		}

		for _, move := range history {
			if move.Position < 0 || move.Position >= BoardSize {
				return Board{}, fmt.Errorf("%w: cell %d", ErrInconsistentHistory, move.Position)
			}
			if board[move.Position] != EmptyCell {
				return Board{}, fmt.Errorf("%w: cell %d used twice", ErrInconsistentHistory, move.Position)
			}
			board[move.Position] = mark
		}
	}

	return board, nil
}

type GameState struct {
	Board        Board         `json:"board"`
	ActivePlayer Mark          `json:"active_player"`
	WinLine      *WinLine      `json:"win_line"`
	MoveHistory  MoveHistories `json:"move_history"`
	Phase        Phase         `json:"phase"`
	MoveCount    int           `json:"move_count"`
}

func NewGameState() GameState {
	return GameState{
		ActivePlayer: PlayerX,
		MoveHistory: MoveHistories{
			X: MoveHistory{},
			O: MoveHistory{},
		},
		Phase: PhasePlaying,
	}
}

// Clone returns a deep copy that shares no slices or pointers with the receiver.
func (that GameState) Clone() GameState {
	clone := that
	clone.MoveHistory = that.MoveHistory.Clone()
	if that.WinLine != nil {
		line := *that.WinLine
		clone.WinLine = &line
	}
	return clone
}

func (that GameState) IsFinished() bool {
	return that.Phase == PhaseFinished
}

func (that GameState) IsPlaying() bool {
	return that.Phase == PhasePlaying
}
