package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"chunkvault/pkg/app"
	"chunkvault/pkg/config"
	"chunkvault/pkg/server"

	"github.com/spf13/viper"
)

func main() {
	// 1. Load Config
	cfgFile := flag.String("config", "", "config file (default is ./.cv/config.yaml or $HOME/.cv/config.yaml)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := config.Load(*cfgFile); err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Init Core Application
	application, err := app.NewApp(ctx)
	if err != nil {
		slog.Error("failed to initialize app", "err", err)
		os.Exit(1)
	}
	defer application.Close()
	slog.Info("ChunkVault core initialized",
		"storage", viper.GetString("storage.type"),
		"database", viper.GetString("database.driver"))

	// 3. Setup Network
	addr := viper.GetString("server.addr")
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("failed to listen", "addr", addr, "err", err)
		os.Exit(1)
	}

	// 4. Setup gRPC Server
	grpcServer := server.New(application)

	// 5. Start Server (Async)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("gRPC server listening", "addr", addr)
		errCh <- grpcServer.Serve(lis)
	}()

	// 6. Graceful Shutdown
	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
		grpcServer.GracefulStop()
	case err := <-errCh:
		if err != nil {
			slog.Error("failed to serve", "err", err)
		}
	}
	slog.Info("server stopped")
}
