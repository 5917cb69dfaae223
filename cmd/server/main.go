package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bank-ledger/internal/config"
	"bank-ledger/internal/httpapi"
	"bank-ledger/internal/ledger"
)

func main() {
	start := time.Now()

	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	slog.Info("startup begin",
		"addr", cfg.HTTPAddr,
		"workers", cfg.Workers,
		"queue_depth", cfg.QueueDepth,
		"lock_timeout", cfg.LockTimeout.String(),
		"env", cfg.Env,
	)

	lg := ledger.New(ledger.Options{
		Workers:     cfg.Workers,
		QueueDepth:  cfg.QueueDepth,
		LockTimeout: cfg.LockTimeout,
	})

	h := httpapi.NewHandlers(lg)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.Router(h),

		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("ready",
			"startup", time.Since(start).Truncate(time.Millisecond).String(),
			"addr", cfg.HTTPAddr,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down")

	// Stop intake first, then let queued transactions settle.
	if err := srv.Close(); err != nil {
		slog.Error("server close failed", "error", err)
	}
	lg.Close()

	slog.Info("exited")
}
