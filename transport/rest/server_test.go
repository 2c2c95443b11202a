package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactics-backend/internal/apperror"
	"github.com/rocketscienceinc/tictactics-backend/internal/entity"
	"github.com/rocketscienceinc/tictactics-backend/internal/service"
	"github.com/rocketscienceinc/tictactics-backend/testing/suite"
)

type mockMatches struct {
	mock.Mock
}

func (that *mockMatches) GetMatchInfo(ctx context.Context, matchID string) (entity.MatchInfo, error) {
	args := that.Called(ctx, matchID)
	return args.Get(0).(entity.MatchInfo), args.Error(1)
}

type mockSnapshots struct {
	mock.Mock
}

func (that *mockSnapshots) GetByID(ctx context.Context, id string) (*entity.Match, error) {
	args := that.Called(ctx, id)
	match, _ := args.Get(0).(*entity.Match)
	return match, args.Error(1)
}

func newTestServer(t *testing.T, matches *mockMatches, origins ...string) *httptest.Server {
	t.Helper()

	return newTestServerWithSnapshots(t, matches, nil, origins...)
}

func newTestServerWithSnapshots(t *testing.T, matches *mockMatches, snapshots matchSnapshotGetter, origins ...string) *httptest.Server {
	t.Helper()

	logger := suite.NewLogger()
	handlers := NewHandlers(logger, matches, snapshots, service.NewBotService(service.MaxDepth), service.DepthMedium)
	server := New(logger, handlers, origins)

	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	return httpServer
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func TestPingAndHealth(t *testing.T) {
	httpServer := newTestServer(t, &mockMatches{})

	t.Run("Ping", func(t *testing.T) {
		resp := get(t, httpServer.URL+"/ping")

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "pong", string(body))
	})

	t.Run("Health", func(t *testing.T) {
		resp := get(t, httpServer.URL+"/health")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var health HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))

		assert.Equal(t, "ok", health.Status)
		assert.Equal(t, "tictactics-server", health.Service)
		assert.Equal(t, "1.0.0", health.Version)

		_, err := time.Parse(time.RFC3339, health.Timestamp)
		assert.NoError(t, err)
	})

	t.Run("Wrong method", func(t *testing.T) {
		resp := postJSON(t, httpServer.URL+"/health", "{}")

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestMatchInfoHandler(t *testing.T) {
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	matches := &mockMatches{}
	matches.On("GetMatchInfo", mock.Anything, "ABCD1234").
		Return(entity.MatchInfo{ID: "ABCD1234", HostName: "Alice", CreatedAt: createdAt}, nil)
	matches.On("GetMatchInfo", mock.Anything, "NOPE0000").
		Return(entity.MatchInfo{}, apperror.ErrMatchNotFound)

	httpServer := newTestServer(t, matches)

	t.Run("Existing match", func(t *testing.T) {
		resp := get(t, httpServer.URL+"/matches/ABCD1234")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var info entity.MatchInfo
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))

		assert.Equal(t, "Alice", info.HostName)
		assert.False(t, info.HasGuest)
		assert.True(t, createdAt.Equal(info.CreatedAt))
	})

	t.Run("Unknown match", func(t *testing.T) {
		resp := get(t, httpServer.URL+"/matches/NOPE0000")
		require.Equal(t, http.StatusNotFound, resp.StatusCode)

		var body ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, apperror.CodeNotFound, body.Error)
	})

	matches.AssertExpectations(t)
}

func TestMatchInfoHandler_SnapshotFallback(t *testing.T) {
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	// Given: a match only another instance holds, mirrored in Redis
	remote := entity.NewMatch("REMOTE01", entity.Participant{DisplayName: "Carol"}, createdAt)

	matches := &mockMatches{}
	matches.On("GetMatchInfo", mock.Anything, mock.Anything).Return(entity.MatchInfo{}, apperror.ErrMatchNotFound)

	snapshots := &mockSnapshots{}
	snapshots.On("GetByID", mock.Anything, "REMOTE01").Return(remote, nil)
	snapshots.On("GetByID", mock.Anything, "NOPE0000").Return(nil, apperror.ErrMatchNotFound)

	httpServer := newTestServerWithSnapshots(t, matches, snapshots)

	t.Run("Found in the mirror", func(t *testing.T) {
		// When: it is looked up here
		resp := get(t, httpServer.URL+"/matches/REMOTE01")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// Then: the snapshot answers
		var info entity.MatchInfo
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
		assert.Equal(t, "REMOTE01", info.ID)
		assert.Equal(t, "Carol", info.HostName)
	})

	t.Run("Missing everywhere", func(t *testing.T) {
		resp := get(t, httpServer.URL+"/matches/NOPE0000")

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	snapshots.AssertExpectations(t)
}

func TestBotMoveHandler(t *testing.T) {
	httpServer := newTestServer(t, &mockMatches{})
	url := httpServer.URL + "/bot/move"

	t.Run("Takes the immediate win", func(t *testing.T) {
		// Given: O holds 3 and 4, X holds 0 and 1
		body := `{"move_history":{"X":[{"position":0,"sequence":0},{"position":1,"sequence":2}],` +
			`"O":[{"position":3,"sequence":1},{"position":4,"sequence":3}]},"depth":1}`

		// When: the bot is asked for a move
		resp := postJSON(t, url, body)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// Then: it completes the row
		var move BotMoveResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&move))
		assert.Equal(t, 5, move.Position)
	})

	t.Run("Default depth on an empty board", func(t *testing.T) {
		resp := postJSON(t, url, `{"move_history":{"X":[],"O":[]}}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var move BotMoveResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&move))
		assert.GreaterOrEqual(t, move.Position, 0)
		assert.Less(t, move.Position, entity.BoardSize)
	})

	t.Run("Inconsistent history", func(t *testing.T) {
		resp := postJSON(t, url, `{"move_history":{"X":[{"position":4,"sequence":0}],"O":[{"position":4,"sequence":1}]}}`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, apperror.CodeInvalidInput, body.Error)
	})

	t.Run("Malformed body", func(t *testing.T) {
		resp := postJSON(t, url, `{"move_history":`)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCORS(t *testing.T) {
	httpServer := newTestServer(t, &mockMatches{}, "https://play.example.com")

	req, err := http.NewRequest(http.MethodGet, httpServer.URL+"/ping", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://play.example.com")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://play.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}
