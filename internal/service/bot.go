package service

import (
	"errors"

	"github.com/rocketscienceinc/tictactics-backend/internal/entity"
)

// Search depths offered to players.
const (
	DepthEasy   = 1
	DepthMedium = 3
	DepthHard   = 5

	MaxDepth = DepthHard
)

var ErrNoAvailableMoves = errors.New("no available moves")

type BotService interface {
	ChooseMove(board entity.Board, history entity.MoveHistories, depth int) (int, error)
}

type botService struct {
	maxDepth int
}

// NewBotService returns a bot whose search depth never exceeds maxDepth.
func NewBotService(maxDepth int) BotService {
	if maxDepth < 1 {
		maxDepth = MaxDepth
	}

	return &botService{
		maxDepth: maxDepth,
	}
}

func (that *botService) ChooseMove(board entity.Board, history entity.MoveHistories, depth int) (int, error) {
	if board.IsFull() {
		return -1, ErrNoAvailableMoves
	}

	return ChooseMove(board, history, that.clamp(depth)), nil
}

func (that *botService) clamp(depth int) int {
	if depth < 1 {
		return 1
	}
	if depth > that.maxDepth {
		return that.maxDepth
	}
	return depth
}
