package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order_engine/internal/app"
	"order_engine/internal/engine"

	_ "net/http/pprof" // For pprof profiling
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 1. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		bootstrap.Shutdown(context.Background())
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Pprof Server (for performance profiling)
	if cfg.Server.PprofAddr != "" {
		go func() {
			slog.Info("🕵️ Pprof server started", slog.String("addr", cfg.Server.PprofAddr))
			if err := http.ListenAndServe(cfg.Server.PprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 4. Workers
	bootstrap.Pool.Start(ctx)
	go logResults(bootstrap.Pool.Results())
	slog.InfoContext(ctx, "✅ Worker pool started", slog.Int("size", bootstrap.Pool.Size()))

	// 5. API Server
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- bootstrap.Server.Start(cfg.Server.Addr)
	}()

	slog.InfoContext(ctx, "✨ Order engine fully operational. Press Ctrl+C to exit.", slog.String("addr", cfg.Server.Addr))

	// Wait for shutdown signal
	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			slog.Error("❌ API server failed", slog.Any("error", err))
			exitCode = 1
		}
	}

	slog.Info("👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := bootstrap.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown finished with errors", slog.Any("error", err))
		exitCode = 1
	}
	os.Exit(exitCode)
}

func logResults(results <-chan engine.JobResult) {
	logger := slog.Default().With("module", "results")
	for r := range results {
		switch r := r.(type) {
		case engine.Success:
			logger.Info("Order confirmed",
				slog.String("order_id", r.OrderID),
				slog.String("tx_hash", r.TxHash),
				slog.String("executed_price", r.ExecutedPrice.String()),
				slog.Int("attempt", r.Attempt),
			)
		case engine.Failure:
			level := slog.LevelWarn
			if r.Retrying {
				level = slog.LevelInfo
			}
			logger.Log(context.Background(), level, "Order attempt failed",
				slog.String("order_id", r.OrderID),
				slog.String("reason", r.Reason),
				slog.Int("attempts_used", r.AttemptsUsed),
				slog.Bool("retrying", r.Retrying),
			)
		}
	}
}
