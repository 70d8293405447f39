// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/danielhkuo/govboard/chain"
	"github.com/danielhkuo/govboard/cliparse"
	"github.com/danielhkuo/govboard/db"
	"github.com/danielhkuo/govboard/events"
	"github.com/danielhkuo/govboard/metrics"
	"github.com/danielhkuo/govboard/referendum"
	"github.com/danielhkuo/govboard/router"
	"github.com/danielhkuo/govboard/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var err error

	if err = cliparse.LoadEnvFile(".env"); err != nil {
		slog.Error("Error reading .env", "error", err)
		os.Exit(1)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      parseLevel(cfg.LogLevel),
		TimeFormat: time.DateTime,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))

	// Connect to the database
	conn, err := db.Open(db.Dialect(cfg.DatabaseType), cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := db.Migrate(context.Background(), conn); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "dialect", cfg.DatabaseType)

	subscan, err := referendum.NewSubscanClient(cfg.Network, cfg.SubscanAPIKey)
	if err != nil {
		slog.Error("subscan client setup failed", "error", err)
		os.Exit(1)
	}

	node := chain.NewClient(cfg.WSProvider)
	defer node.Close()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := node.Connect(ctx); err != nil {
			slog.Error("chain connection failed, retrying in background", "url", cfg.WSProvider, "error", err)
			node.Redial()
			return
		}
		slog.Info("Connected to chain", "url", cfg.WSProvider)
	}()

	images, err := storage.NewDiskStore(cfg.ImageDir, cfg.ImageBaseURL)
	if err != nil {
		slog.Error("image store setup failed", "error", err)
		os.Exit(1)
	}

	// Create router
	mux := router.NewRouter(conn, cfg, router.Services{
		Tallies:  metrics.InstrumentFetcher(subscan),
		Issuance: metrics.InstrumentIssuance(node),
		Images:   images,
		ImageDir: images.Dir(),
		Hub:      events.NewHub(),
	})

	// Create server
	server := http.Server{
		Handler:           mux,
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Warn("graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port, "network", cfg.Network)
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed")
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
