// Command pdfstamp-server serves the pdfstamp engine over HTTP.
//
//	pdfstamp-server -config /etc/pdfstamp.json
//
// See package config for the file format and environment overrides, and
// package server for the endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lvillar/pdfstamp"
	"github.com/lvillar/pdfstamp/config"
	"github.com/lvillar/pdfstamp/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pdfstamp-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a JSON configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, closeFetcher, err := cfg.Fetcher(ctx, log)
	if err != nil {
		return err
	}

	engine := pdfstamp.New(cfg.EngineOptions(log, f)...)
	srv := server.New(engine,
		server.WithLogger(log),
		server.WithAuthSecret(cfg.Auth.Secret),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	)
	if cfg.Auth.Secret == "" {
		log.Warn("bearer authentication disabled")
	}
	hs := &http.Server{
		Addr:        cfg.Listen,
		Handler:     srv.Handler(),
		ReadTimeout: cfg.Server.ReadTimeout.Std(),
		ErrorLog:    zap.NewStdLog(log),
	}
	return server.Run(ctx, hs, log, cfg.Server.ShutdownTimeout.Std(), func() {
		if err := closeFetcher(); err != nil {
			log.Warn("closing cache", zap.Error(err))
		}
	})
}
