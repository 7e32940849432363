package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ptz-bridge/internal/camera"
	"ptz-bridge/internal/config"
	"ptz-bridge/internal/logging"
	"ptz-bridge/internal/server"
)

//go:embed web/*
var staticFiles embed.FS

func main() {
	// Command line flags
	configPath := flag.String("config", config.FileName, "Path to the YAML configuration")
	listenAddr := flag.String("listen", "", "HTTP listen address (overrides the configuration)")
	mkconf := flag.Bool("mkconf", false, "Print an example configuration and exit")
	flag.Parse()

	if *mkconf {
		out, err := config.Example().YAML()
		if err != nil {
			log.Fatalf("Failed to render example configuration: %v", err)
		}
		fmt.Print(string(out))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	cameras, err := camera.OpenAll(ctx, cfg.Cameras, logger.Named("camera"))
	cancel()
	if err != nil {
		return err
	}
	defer cameras.Close()

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Listen,
		ICEServers:  cfg.ICEServers,
		ICEIPs:      cfg.ICEIPs,
		CommandRate: cfg.CommandRate,
	}, cameras, staticFiles, logger.Named("server"))
	if err != nil {
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutting down")
		srv.Stop()
	}()

	names := make([]string, 0, len(cfg.Cameras))
	for _, c := range cfg.Cameras {
		names = append(names, c.Name+" ("+c.Protocol+")")
	}
	logger.Info("PTZ bridge",
		zap.String("listen", cfg.Listen),
		zap.String("cameras", strings.Join(names, ", ")),
		zap.Strings("ice_ips", cfg.ICEIPs))

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
