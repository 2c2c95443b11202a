package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/tictactics-backend/internal/config"
	"github.com/rocketscienceinc/tictactics-backend/internal/repository"
	"github.com/rocketscienceinc/tictactics-backend/internal/repository/storage"
	"github.com/rocketscienceinc/tictactics-backend/internal/service"
	"github.com/rocketscienceinc/tictactics-backend/internal/usecase"
	"github.com/rocketscienceinc/tictactics-backend/transport/rest"
	"github.com/rocketscienceinc/tictactics-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	matchRepo := repository.NewMatchRepository(redisStorage, conf.Match.TTL)
	botService := service.NewBotService(conf.Bot.MaxDepth)
	matchManager := usecase.NewMatchManager(logger, matchRepo, botService, conf.Match.TTL)

	group, groupCtx := errgroup.WithContext(ctx)

	// run HTTP server
	restServer := rest.New(logger, rest.NewHandlers(logger, matchManager, matchRepo, botService, conf.Bot.DefaultDepth), conf.AllowedOrigins)
	group.Go(func() error {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := restServer.Start(groupCtx, conf.HTTPPort); httpErr != nil {
			return fmt.Errorf("HTTP server error: %w", httpErr)
		}
		return nil
	})

	// run Websocket server
	wsServer := websocket.New(groupCtx, logger, matchManager, websocket.Options{
		AllowedOrigins: conf.AllowedOrigins,
		DefaultDepth:   conf.Bot.DefaultDepth,
	})
	group.Go(func() error {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(groupCtx, conf.SocketPort); wsErr != nil {
			return fmt.Errorf("WebSocket server error: %w", wsErr)
		}
		return nil
	})

	// run expired match sweeper
	group.Go(func() error {
		log.Info("Starting match sweeper", "interval", conf.Match.SweepInterval, "ttl", conf.Match.TTL)
		return matchManager.RunSweeper(groupCtx, conf.Match.SweepInterval, wsServer.NotifyExpired)
	})

	if err = group.Wait(); err != nil {
		return err
	}

	log.Info("Application context canceled, shutting down")

	return nil
}
