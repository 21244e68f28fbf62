package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/chatline/internal/config"
	"github.com/Tyrowin/chatline/internal/server"
	"github.com/Tyrowin/chatline/internal/session"
	"github.com/Tyrowin/chatline/internal/store"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal or a listener error.
func run() error {
	// 1. Configuration & Logger
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	// 2. Message archive
	backend, err := store.Open(cfg.StoreDriver, cfg.StorePath, cfg.HistorySize, log)
	if err != nil {
		return fmt.Errorf("opening %s store failed: %w", cfg.StoreDriver, err)
	}
	defer func() {
		log.Info("Closing message store...")
		_ = backend.Close()
	}()
	archiver := store.NewArchiver(backend, cfg.ArchiveBufferSize, log)

	// 3. Hub & engine
	hub := server.NewHub(session.Options{
		HistorySize:   cfg.HistorySize,
		TypingMode:    session.TypingMode(cfg.TypingMode),
		TypingTimeout: cfg.TypingTimeout,
		RingTimeout:   cfg.RingTimeout,
		SingleSession: cfg.SingleSession,
	}, archiver, cfg.TypingSweepInterval, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := archiver.Warm(ctx, cfg.HistorySize)
	if err != nil {
		log.Warn("Starting with an empty history", "err", err)
	}
	hub.Engine().Restore(history)

	archiveCtx, stopArchive := context.WithCancel(context.Background())
	archiveDone := make(chan struct{})
	go func() {
		defer close(archiveDone)
		_ = archiver.Run(archiveCtx)
	}()
	go hub.Run()

	// 4. HTTP
	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(hub, cfg))
	errChan := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 5. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case runErr = <-errChan:
	}

	// 6. Final Cleanup: stop intake, drop clients, then drain the archive.
	_ = server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log)
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Warn("Hub shutdown incomplete", "err", err)
	}
	stopArchive()
	<-archiveDone
	log.Info("Program stopped cleanly")

	return runErr
}
