package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactics-backend/internal/entity"
	"github.com/rocketscienceinc/tictactics-backend/internal/pkg"
	"github.com/rocketscienceinc/tictactics-backend/internal/usecase"
)

const shutdownTimeout = 5 * time.Second

type uMatch interface {
	CreateMatch(ctx context.Context, connectionID, hostName string) (*entity.Match, error)
	CreateBotMatch(ctx context.Context, connectionID, hostName string, depth int) (*entity.Match, error)
	GetMatchInfo(ctx context.Context, matchID string) (entity.MatchInfo, error)
	JoinMatch(ctx context.Context, matchID, connectionID, guestName string) (*entity.Match, error)

	SubmitMove(ctx context.Context, matchID, connectionID string, cell int) (*usecase.MoveResult, error)
	PlayBotTurn(ctx context.Context, matchID string) (*usecase.MoveResult, error)
	Restart(ctx context.Context, matchID, connectionID string) (*entity.Match, error)

	Leave(ctx context.Context, matchID, connectionID string) (*usecase.Departure, error)
	Disconnect(ctx context.Context, connectionID string, matchIDs []string) []usecase.Departure
}

type handlerFunc func(ctx context.Context, sender *client, message *Message) error

// Options tune the websocket server.
type Options struct {
	AllowedOrigins []string
	DefaultDepth   int
}

type Server struct {
	logger *slog.Logger
	uMatch uMatch

	upgrader     websocket.Upgrader
	defaultDepth int
	handlers     map[string]handlerFunc

	// requests and background bot turns are bound to this context
	baseCtx context.Context

	clientsMutex  sync.RWMutex
	clients       map[string]*client
	subscriptions map[string]map[string]struct{}

	// last state version queued per connection and match
	stateMutex    sync.Mutex
	stateVersions map[string]map[string]uint64
}

func New(ctx context.Context, logger *slog.Logger, uMatch uMatch, opts Options) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		uMatch: uMatch,

		defaultDepth: opts.DefaultDepth,
		handlers:     make(map[string]handlerFunc),

		baseCtx: ctx,

		clients:       make(map[string]*client),
		subscriptions: make(map[string]map[string]struct{}),
		stateVersions: make(map[string]map[string]uint64),
	}

	server.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(opts.AllowedOrigins),
	}

	server.handlers[actionCreateMatch] = server.handleCreateMatch
	server.handlers[actionCreateBotMatch] = server.handleCreateBotMatch
	server.handlers[actionGetMatchInfo] = server.handleGetMatchInfo
	server.handlers[actionJoinMatch] = server.handleJoinMatch
	server.handlers[actionSubmitMove] = server.handleSubmitMove
	server.handlers[actionRestartMatch] = server.handleRestartMatch
	server.handlers[actionLeaveMatch] = server.handleLeaveMatch

	return server
}

// Handler returns the router serving /ws.
func (that *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/ws", that.upgradeToWebSocket)

	return router
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown websocket server", "error", err)
		}

		that.closeAll()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection and serves it until it closes.
func (that *Server) upgradeToWebSocket(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := newClient(pkg.GenerateConnectionID(), conn, that.logger)
	that.register(c)

	log.Info("WebSocket connection established", "connection_id", c.id)

	go c.writePump()

	that.sendTo(c, actionConnected, "", ConnectedPayload{ConnectionID: c.id})

	c.readPump(func(raw []byte) {
		that.handleMessage(that.baseCtx, c, raw)
	})

	that.handleDisconnect(c)
}

func (that *Server) register(c *client) {
	that.clientsMutex.Lock()
	defer that.clientsMutex.Unlock()

	that.clients[c.id] = c
}

func (that *Server) unregister(c *client) {
	that.clientsMutex.Lock()
	delete(that.clients, c.id)
	delete(that.subscriptions, c.id)
	that.clientsMutex.Unlock()

	that.stateMutex.Lock()
	delete(that.stateVersions, c.id)
	that.stateMutex.Unlock()
}

func (that *Server) subscribe(connectionID, matchID string) {
	that.clientsMutex.Lock()
	defer that.clientsMutex.Unlock()

	matches, ok := that.subscriptions[connectionID]
	if !ok {
		matches = make(map[string]struct{})
		that.subscriptions[connectionID] = matches
	}

	matches[matchID] = struct{}{}
}

func (that *Server) unsubscribe(connectionID, matchID string) {
	that.clientsMutex.Lock()
	defer that.clientsMutex.Unlock()

	if matches, ok := that.subscriptions[connectionID]; ok {
		delete(matches, matchID)
	}
}

func (that *Server) subscribedMatches(connectionID string) []string {
	that.clientsMutex.RLock()
	defer that.clientsMutex.RUnlock()

	matchIDs := make([]string, 0, len(that.subscriptions[connectionID]))
	for matchID := range that.subscriptions[connectionID] {
		matchIDs = append(matchIDs, matchID)
	}

	return matchIDs
}

func (that *Server) isSubscribed(connectionID, matchID string) bool {
	that.clientsMutex.RLock()
	defer that.clientsMutex.RUnlock()

	_, ok := that.subscriptions[connectionID][matchID]
	return ok
}

func (that *Server) client(connectionID string) (*client, bool) {
	that.clientsMutex.RLock()
	defer that.clientsMutex.RUnlock()

	c, ok := that.clients[connectionID]
	return c, ok
}

func (that *Server) closeAll() {
	that.clientsMutex.RLock()
	clients := make([]*client, 0, len(that.clients))
	for _, c := range that.clients {
		clients = append(clients, c)
	}
	that.clientsMutex.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

// NotifyExpired tells the participants of swept matches that they are gone.
func (that *Server) NotifyExpired(matches []*entity.Match) {
	for _, match := range matches {
		for _, participant := range match.Participants() {
			if participant.Bot || !that.isSubscribed(participant.ConnectionID, match.ID) {
				continue
			}

			that.sendToConnection(participant.ConnectionID, actionMatchExpired, MatchEventPayload{MatchID: match.ID})
			that.unsubscribe(participant.ConnectionID, match.ID)
		}
	}
}

// checkOrigin returns nil for an empty list, which keeps the upgrader's same-host check.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}

	origins := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		origins[strings.TrimSuffix(origin, "/")] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		_, ok := origins[origin]
		return ok
	}
}
