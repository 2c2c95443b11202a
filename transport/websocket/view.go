package websocket

import (
	"github.com/rocketscienceinc/tictactics-backend/internal/entity"
	"github.com/rocketscienceinc/tictactics-backend/internal/tictactoe"
)

// StateView is the state of a match as one participant sees it.
type StateView struct {
	MatchID      string               `json:"match_id"`
	Version      uint64               `json:"version"`
	Board        entity.Board         `json:"board"`
	WinLine      *entity.WinLine      `json:"win_line"`
	MoveHistory  entity.MoveHistories `json:"move_history"`
	Phase        entity.Phase         `json:"phase"`
	ActivePlayer entity.Mark          `json:"active_player"`
	Waiting      bool                 `json:"waiting"`
	FadingCell   *int                 `json:"fading_cell"`
	EvictedCell  *int                 `json:"evicted_cell,omitempty"`
	Winner       entity.Mark          `json:"winner,omitempty"`

	YourSymbol          entity.Mark `json:"your_symbol"`
	IsYourTurn          bool        `json:"is_your_turn"`
	OpponentDisplayName string      `json:"opponent_display_name"`
}

// NewStateView personalizes the match state for viewer. evicted is the cell
// the last move freed, or tictactoe.NoEviction.
func NewStateView(match *entity.Match, viewer entity.Participant, evicted int) StateView {
	state := match.State.Clone()

	view := StateView{
		MatchID:      match.ID,
		Version:      match.Version,
		Board:        state.Board,
		WinLine:      state.WinLine,
		MoveHistory:  state.MoveHistory,
		Phase:        state.Phase,
		ActivePlayer: state.ActivePlayer,
		Waiting:      match.IsWaiting(),

		YourSymbol: viewer.Symbol,
		IsYourTurn: state.ActivePlayer == viewer.Symbol,
	}

	if opponent, ok := match.Opponent(viewer.Symbol); ok {
		view.OpponentDisplayName = opponent.DisplayName
	}

	if cell, ok := tictactoe.FadingCell(state); ok {
		view.FadingCell = &cell
	}

	if evicted != tictactoe.NoEviction {
		view.EvictedCell = &evicted
	}

	if state.IsFinished() && state.WinLine != nil {
		view.Winner = state.Board[state.WinLine[0]]
	}

	return view
}
