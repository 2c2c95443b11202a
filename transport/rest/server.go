package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	logger         *slog.Logger
	handlers       Handlers
	allowedOrigins []string
}

func New(logger *slog.Logger, handlers Handlers, allowedOrigins []string) *Server {
	return &Server{
		logger:         logger.With("component", "rest"),
		handlers:       handlers,
		allowedOrigins: allowedOrigins,
	}
}

// Handler returns the router with CORS applied.
func (that *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/ping", that.handlers.PingHandler).Methods(http.MethodGet)
	router.HandleFunc("/health", that.handlers.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/matches/{matchID}", that.handlers.MatchInfoHandler).Methods(http.MethodGet)
	router.HandleFunc("/bot/move", that.handlers.BotMoveHandler).Methods(http.MethodPost, http.MethodOptions)

	origins := that.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	return cors(router)
}

// Start - starts HTTP server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown http server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
