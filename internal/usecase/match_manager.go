package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rocketscienceinc/tictactics-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactics-backend/internal/entity"
	"github.com/rocketscienceinc/tictactics-backend/internal/pkg"
	"github.com/rocketscienceinc/tictactics-backend/internal/repository"
	"github.com/rocketscienceinc/tictactics-backend/internal/service"
	"github.com/rocketscienceinc/tictactics-backend/internal/tictactoe"
)

const (
	maxDisplayNameLength = 32
	maxCreateAttempts    = 5

	botDisplayName = "Computer"
)

var (
	ErrMatchIDExhausted = errors.New("could not allocate a free match id")
	ErrNotBotTurn       = errors.New("it is not the bot's turn")
	ErrStaleBotTurn     = errors.New("match moved on while the bot was thinking")
)

type matchRepo interface {
	Create(ctx context.Context, match *entity.Match) error
	Update(ctx context.Context, match *entity.Match) error
	DeleteByID(ctx context.Context, id string) error
}

// MoveResult describes an accepted move.
type MoveResult struct {
	Match   *entity.Match
	Mover   entity.Mark
	Evicted int
	Won     bool
}

// IsBotToMove reports whether the bot seat should play next.
func (that *MoveResult) IsBotToMove() bool {
	return isBotToMove(that.Match)
}

// Departure describes a participant leaving a match.
type Departure struct {
	MatchID   string
	Departed  entity.Participant
	Remaining *entity.Participant
	Deleted   bool

	// Match is the state after the departure, nil when the match was deleted.
	Match *entity.Match
}

type room struct {
	mu     sync.Mutex
	match  *entity.Match
	closed bool
}

// MatchManager is the authoritative store of live matches. Operations on one
// match are serialized, different matches never wait for each other.
type MatchManager struct {
	logger     *slog.Logger
	matchRepo  matchRepo
	botService service.BotService

	ttl        time.Duration
	now        func() time.Time
	generateID func() string

	mu    sync.RWMutex
	rooms map[string]*room
}

type Option func(*MatchManager)

func WithClock(now func() time.Time) Option {
	return func(that *MatchManager) {
		that.now = now
	}
}

func WithIDGenerator(generate func() string) Option {
	return func(that *MatchManager) {
		that.generateID = generate
	}
}

func NewMatchManager(logger *slog.Logger, matchRepo matchRepo, botService service.BotService, ttl time.Duration, opts ...Option) *MatchManager {
	manager := &MatchManager{
		logger:     logger.With("component", "match_manager"),
		matchRepo:  matchRepo,
		botService: botService,

		ttl:        ttl,
		now:        time.Now,
		generateID: pkg.GenerateMatchID,

		rooms: make(map[string]*room),
	}

	for _, opt := range opts {
		opt(manager)
	}

	return manager
}

func (that *MatchManager) CreateMatch(ctx context.Context, connectionID, hostName string) (*entity.Match, error) {
	return that.create(ctx, connectionID, hostName, nil)
}

// CreateBotMatch creates a match whose guest seat is taken by the bot at the given search depth.
func (that *MatchManager) CreateBotMatch(ctx context.Context, connectionID, hostName string, depth int) (*entity.Match, error) {
	bot := &entity.Participant{
		DisplayName: botDisplayName,
		Symbol:      entity.PlayerO,
		Bot:         true,
		BotDepth:    depth,
	}

	return that.create(ctx, connectionID, hostName, bot)
}

func (that *MatchManager) create(ctx context.Context, connectionID, hostName string, guest *entity.Participant) (*entity.Match, error) {
	log := that.logger.With("method", "create")

	name, err := validateDisplayName(hostName)
	if err != nil {
		return nil, err
	}

	host := entity.Participant{ConnectionID: connectionID, DisplayName: name}

	for range maxCreateAttempts {
		match := entity.NewMatch(that.generateID(), host, that.now())
		match.Guest = guest

		if !that.insert(match) {
			continue
		}

		err = that.matchRepo.Create(ctx, match)
		if errors.Is(err, repository.ErrMatchExists) {
			that.remove(match.ID)
			continue
		}

		if err != nil {
			log.Error("failed to mirror new match", "match_id", match.ID, "error", err)
		}

		log.Info("match created", "match_id", match.ID, "with_bot", match.IsWithBot())

		return match.Clone(), nil
	}

	return nil, ErrMatchIDExhausted
}

// GetMatch returns a snapshot of the match.
func (that *MatchManager) GetMatch(_ context.Context, matchID string) (*entity.Match, error) {
	r, err := that.lockRoom(matchID)
	if err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	return r.match.Clone(), nil
}

func (that *MatchManager) GetMatchInfo(ctx context.Context, matchID string) (entity.MatchInfo, error) {
	match, err := that.GetMatch(ctx, matchID)
	if err != nil {
		return entity.MatchInfo{}, err
	}

	return match.Info(), nil
}

func (that *MatchManager) JoinMatch(ctx context.Context, matchID, connectionID, guestName string) (*entity.Match, error) {
	name, err := validateDisplayName(guestName)
	if err != nil {
		return nil, err
	}

	r, err := that.lockRoom(matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to join match: %w", err)
	}
	defer r.mu.Unlock()

	if r.match.HasGuest() {
		return nil, fmt.Errorf("failed to join match: %w", apperror.ErrMatchFull)
	}

	if r.match.Host.ConnectionID == connectionID {
		return nil, fmt.Errorf("host cannot join its own match: %w", apperror.ErrInvalidInput)
	}

	r.match.Guest = &entity.Participant{
		ConnectionID: connectionID,
		DisplayName:  name,
		Symbol:       entity.PlayerO,
	}

	that.commit(ctx, r.match)

	that.logger.Info("guest joined", "match_id", matchID)

	return r.match.Clone(), nil
}

// SubmitMove applies a move for the connection's seat. Every rule violation
// wraps apperror.ErrMoveRejected.
func (that *MatchManager) SubmitMove(ctx context.Context, matchID, connectionID string, cell int) (*MoveResult, error) {
	r, err := that.lockRoom(matchID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrMoveRejected, err)
	}
	defer r.mu.Unlock()

	if r.match.IsWaiting() {
		return nil, fmt.Errorf("%w: %w", apperror.ErrMoveRejected, apperror.ErrMatchNotStarted)
	}

	participant, ok := r.match.Participant(connectionID)
	if !ok {
		return nil, fmt.Errorf("%w: %w", apperror.ErrMoveRejected, apperror.ErrNotParticipant)
	}

	return that.apply(ctx, r, participant.Symbol, cell)
}

// PlayBotTurn lets the bot seat move. The search runs without holding the
// match lock, and its move is dropped if the match changed meanwhile.
func (that *MatchManager) PlayBotTurn(ctx context.Context, matchID string) (*MoveResult, error) {
	r, err := that.lockRoom(matchID)
	if err != nil {
		return nil, err
	}

	if !isBotToMove(r.match) {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", apperror.ErrMoveRejected, ErrNotBotTurn)
	}

	state := r.match.State.Clone()
	version := r.match.Version
	symbol := r.match.Guest.Symbol
	depth := r.match.Guest.BotDepth
	r.mu.Unlock()

	cell, err := that.botService.ChooseMove(state.Board, state.MoveHistory, depth)
	if err != nil {
		return nil, fmt.Errorf("bot failed to choose a move: %w", err)
	}

	r, err = that.lockRoom(matchID)
	if err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	if r.match.Version != version || !isBotToMove(r.match) {
		return nil, fmt.Errorf("%w: %w", apperror.ErrMoveRejected, ErrStaleBotTurn)
	}

	return that.apply(ctx, r, symbol, cell)
}

// apply must be called with the room locked.
func (that *MatchManager) apply(ctx context.Context, r *room, symbol entity.Mark, cell int) (*MoveResult, error) {
	outcome, err := tictactoe.ApplyMove(r.match.State, symbol, cell)
	if err != nil {
		return nil, err
	}

	r.match.State = outcome.State
	that.commit(ctx, r.match)

	if outcome.Won {
		that.logger.Info("match won", "match_id", r.match.ID, "winner", symbol)
	}

	return &MoveResult{
		Match:   r.match.Clone(),
		Mover:   symbol,
		Evicted: outcome.Evicted,
		Won:     outcome.Won,
	}, nil
}

// Restart resets the board and keeps both seats.
func (that *MatchManager) Restart(ctx context.Context, matchID, connectionID string) (*entity.Match, error) {
	r, err := that.lockRoom(matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to restart match: %w", err)
	}
	defer r.mu.Unlock()

	if _, ok := r.match.Participant(connectionID); !ok {
		return nil, fmt.Errorf("failed to restart match: %w: %w", apperror.ErrInvalidInput, apperror.ErrNotParticipant)
	}

	r.match.State = entity.NewGameState()
	that.commit(ctx, r.match)

	that.logger.Info("match restarted", "match_id", matchID)

	return r.match.Clone(), nil
}

// Leave removes the connection from the match. A leaving guest frees its seat
// and the board is reset, a leaving host closes the match.
func (that *MatchManager) Leave(ctx context.Context, matchID, connectionID string) (*Departure, error) {
	r, err := that.lockRoom(matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to leave match: %w", err)
	}
	defer r.mu.Unlock()

	participant, ok := r.match.Participant(connectionID)
	if !ok {
		return nil, fmt.Errorf("failed to leave match: %w: %w", apperror.ErrInvalidInput, apperror.ErrNotParticipant)
	}

	departure := &Departure{
		MatchID:  matchID,
		Departed: *participant,
	}

	if participant.Symbol == entity.PlayerO {
		host := r.match.Host
		departure.Remaining = &host

		r.match.Guest = nil
		r.match.State = entity.NewGameState()
		that.commit(ctx, r.match)

		departure.Match = r.match.Clone()

		that.logger.Info("guest left", "match_id", matchID)

		return departure, nil
	}

	departure.Remaining = humanGuest(r.match)
	departure.Deleted = true
	that.closeRoom(ctx, r)

	that.logger.Info("host left, match deleted", "match_id", matchID)

	return departure, nil
}

// Disconnect tears down the given matches the connection takes part in.
// Matches it does not belong to are left alone.
func (that *MatchManager) Disconnect(ctx context.Context, connectionID string, matchIDs []string) []Departure {
	if connectionID == "" {
		return nil
	}

	var departures []Departure
	for _, matchID := range matchIDs {
		r, err := that.lockRoom(matchID)
		if err != nil {
			continue
		}

		participant, ok := r.match.Participant(connectionID)
		if !ok {
			r.mu.Unlock()
			continue
		}

		departure := Departure{
			MatchID:  r.match.ID,
			Departed: *participant,
			Deleted:  true,
		}

		if participant.Symbol == entity.PlayerX {
			departure.Remaining = humanGuest(r.match)
		} else {
			host := r.match.Host
			departure.Remaining = &host
		}

		that.closeRoom(ctx, r)
		r.mu.Unlock()

		departures = append(departures, departure)
	}

	if len(departures) > 0 {
		that.logger.Info("connection dropped", "connection_id", connectionID, "matches", len(departures))
	}

	return departures
}

// SweepExpired deletes every match created more than the TTL before now and
// returns their last snapshots.
func (that *MatchManager) SweepExpired(ctx context.Context, now time.Time) []*entity.Match {
	that.mu.RLock()
	candidates := make([]*room, 0, len(that.rooms))
	for _, r := range that.rooms {
		candidates = append(candidates, r)
	}
	that.mu.RUnlock()

	var expired []*entity.Match
	for _, r := range candidates {
		r.mu.Lock()
		if !r.closed && r.match.IsExpired(now, that.ttl) {
			expired = append(expired, r.match.Clone())
			that.closeRoom(ctx, r)
		}
		r.mu.Unlock()
	}

	if len(expired) > 0 {
		that.logger.Info("expired matches removed", "count", len(expired))
	}

	return expired
}

// RunSweeper sweeps on every tick until ctx is done.
func (that *MatchManager) RunSweeper(ctx context.Context, interval time.Duration, onExpired func([]*entity.Match)) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s: %w", interval, apperror.ErrInvalidInput)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			expired := that.SweepExpired(ctx, that.now())
			if len(expired) > 0 && onExpired != nil {
				onExpired(expired)
			}
		}
	}
}

func (that *MatchManager) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.rooms)
}

func (that *MatchManager) insert(match *entity.Match) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, exists := that.rooms[match.ID]; exists {
		return false
	}

	that.rooms[match.ID] = &room{match: match}
	return true
}

func (that *MatchManager) remove(matchID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.rooms, matchID)
}

// lockRoom returns the room locked. Callers unlock it.
func (that *MatchManager) lockRoom(matchID string) (*room, error) {
	that.mu.RLock()
	r, ok := that.rooms[matchID]
	that.mu.RUnlock()

	if !ok {
		return nil, apperror.ErrMatchNotFound
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, apperror.ErrMatchNotFound
	}

	return r, nil
}

// closeRoom must be called with the room locked.
func (that *MatchManager) closeRoom(ctx context.Context, r *room) {
	r.closed = true
	that.remove(r.match.ID)

	if err := that.matchRepo.DeleteByID(ctx, r.match.ID); err != nil {
		that.logger.Error("failed to delete match snapshot", "match_id", r.match.ID, "error", err)
	}
}

// commit bumps the match version and mirrors the snapshot. The room must be locked.
func (that *MatchManager) commit(ctx context.Context, match *entity.Match) {
	match.Version++

	if err := that.matchRepo.Update(ctx, match); err != nil {
		that.logger.Error("failed to mirror match", "match_id", match.ID, "error", err)
	}
}

func isBotToMove(match *entity.Match) bool {
	return match.IsWithBot() && match.State.IsPlaying() && match.State.ActivePlayer == match.Guest.Symbol
}

func humanGuest(match *entity.Match) *entity.Participant {
	if match.Guest == nil || match.Guest.Bot {
		return nil
	}

	guest := *match.Guest
	return &guest
}

func validateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return "", fmt.Errorf("display name is required: %w", apperror.ErrInvalidInput)
	}

	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return "", fmt.Errorf("display name is longer than %d characters: %w", maxDisplayNameLength, apperror.ErrInvalidInput)
	}

	return name, nil
}
