package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rocketscienceinc/tictactics-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactics-backend/internal/entity"
	"github.com/rocketscienceinc/tictactics-backend/internal/service"
)

const maxBodySize = 4096

type Handlers interface {
	PingHandler(w http.ResponseWriter, _ *http.Request)
	HealthHandler(w http.ResponseWriter, _ *http.Request)

	MatchInfoHandler(w http.ResponseWriter, r *http.Request)
	BotMoveHandler(w http.ResponseWriter, r *http.Request)
}

type matchInfoGetter interface {
	GetMatchInfo(ctx context.Context, matchID string) (entity.MatchInfo, error)
}

// matchSnapshotGetter reads the Redis mirror, which also holds matches of other instances.
type matchSnapshotGetter interface {
	GetByID(ctx context.Context, id string) (*entity.Match, error)
}

type BotMoveRequest struct {
	MoveHistory entity.MoveHistories `json:"move_history"`
	Depth       int                  `json:"depth"`
}

type BotMoveResponse struct {
	Position int `json:"position"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type httpHandlers struct {
	logger       *slog.Logger
	matches      matchInfoGetter
	snapshots    matchSnapshotGetter
	botService   service.BotService
	defaultDepth int
	now          func() time.Time
}

func NewHandlers(
	logger *slog.Logger,
	matches matchInfoGetter,
	snapshots matchSnapshotGetter,
	botService service.BotService,
	defaultDepth int,
) Handlers {
	return &httpHandlers{
		logger:       logger.With("component", "rest"),
		matches:      matches,
		snapshots:    snapshots,
		botService:   botService,
		defaultDepth: defaultDepth,
		now:          time.Now,
	}
}

// MatchInfoHandler - looks the match up in memory first, then in the snapshot mirror.
func (that *httpHandlers) MatchInfoHandler(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchID"]

	info, err := that.matches.GetMatchInfo(r.Context(), matchID)
	if errors.Is(err, apperror.ErrMatchNotFound) && that.snapshots != nil {
		info, err = that.snapshotInfo(r.Context(), matchID)
	}

	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, info)
}

func (that *httpHandlers) snapshotInfo(ctx context.Context, matchID string) (entity.MatchInfo, error) {
	match, err := that.snapshots.GetByID(ctx, matchID)
	if err != nil {
		return entity.MatchInfo{}, err
	}

	return match.Info(), nil
}

// BotMoveHandler - runs the search for a client that plays the computer locally.
func (that *httpHandlers) BotMoveHandler(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "BotMoveHandler")

	var request BotMoveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&request); err != nil {
		that.writeError(w, fmt.Errorf("malformed body: %w", apperror.ErrInvalidInput))
		return
	}

	board, err := request.MoveHistory.Board()
	if err != nil {
		that.writeError(w, fmt.Errorf("%w: %w", apperror.ErrInvalidInput, err))
		return
	}

	depth := request.Depth
	if depth == 0 {
		depth = that.defaultDepth
	}

	position, err := that.botService.ChooseMove(board, request.MoveHistory, depth)
	if errors.Is(err, service.ErrNoAvailableMoves) {
		that.writeError(w, fmt.Errorf("%w: %w", apperror.ErrInvalidInput, err))
		return
	}

	if err != nil {
		log.Error("failed to choose move", "error", err)
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, BotMoveResponse{Position: position})
}

func (that *httpHandlers) writeError(w http.ResponseWriter, err error) {
	code := apperror.Code(err)

	response := ErrorResponse{Error: code}
	if code != apperror.CodeInternal {
		response.Message = err.Error()
	}

	that.writeJSON(w, statusFor(code), response)
}

func (that *httpHandlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to encode response", "error", err)
	}
}

func statusFor(code string) int {
	switch code {
	case apperror.CodeNotFound:
		return http.StatusNotFound
	case apperror.CodeInvalidInput, apperror.CodeRejected:
		return http.StatusBadRequest
	case apperror.CodeFull:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
