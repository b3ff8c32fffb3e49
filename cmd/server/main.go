package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/chatroom/internal/server"
	"github.com/Tyrowin/chatroom/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the process together and returns the first fatal error, so that
// deferred cleanup (closing the store) always runs before exit.
func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	config, err := server.NewConfigFromEnv()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messages, err := store.Open(ctx, config.StoreOptions(), log)
	if err != nil {
		return fmt.Errorf("message store: %w", err)
	}
	defer func() {
		log.Info("Closing message store")
		if err := messages.Close(); err != nil {
			log.Error("Closing message store failed", "error", err)
		}
	}()

	srv := server.NewServer(config, messages, log)
	srv.StartHub()

	httpServer := server.CreateServer(config.Port, srv.SetupRoutes())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.StartServer(log, httpServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully")
		httpErr := server.ShutdownServer(log, httpServer, config.ShutdownTimeout)
		hubErr := srv.Shutdown(config.ShutdownTimeout)
		return errors.Join(httpErr, hubErr)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Program stopped cleanly")
	return nil
}
