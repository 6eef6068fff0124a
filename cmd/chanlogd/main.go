// Package main provides the entry point for the chanlog daemon. It wires
// the recording pipeline together: configuration, the document store
// client, the sink stack (console, rotating files, store, live tail), the
// dispatcher, and the query API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/chanlog/chanlog/internal/api"
	"github.com/chanlog/chanlog/internal/config"
	"github.com/chanlog/chanlog/internal/logging"
	"github.com/chanlog/chanlog/internal/sink"
	"github.com/chanlog/chanlog/internal/store"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	fmt.Printf("chanlogd %s (%s, built %s)\n", Version, Commit, BuildDate)

	var configPath string
	var logLevel string
	flag.StringVar(&configPath, "config", "config.yaml", "path to the configuration file")
	flag.StringVar(&logLevel, "log-level", "", "override the configured log level")
	flag.Parse()

	// .env is optional and only used to seed the environment in dev setups.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.SetLogLevel(cfg.LogLevel)

	if err := run(cfg, configPath); err != nil {
		log.Fatalf("chanlogd exited with error: %v", err)
	}
}

func run(cfg *config.Config, configPath string) error {
	client, err := store.NewClient(store.ClientConfig{
		Nodes:       cfg.Store.Nodes,
		Timeout:     cfg.Store.Timeout,
		MaxAttempts: cfg.Store.MaxAttempts,
	})
	if err != nil {
		return err
	}
	manager := store.NewManager(client, cfg.Store.Index, cfg.Store.Doctype)

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	fileSink := sink.NewFileSink(sink.FileSinkConfig{
		Dir:            cfg.LogDir,
		Channels:       cfg.Channels,
		SystemRotateMB: cfg.SystemRotateMB,
	})
	bufferedFiles := sink.NewBufferedSink(fileSink, cfg.FlushInterval)
	bufferedStore := sink.NewBufferedSink(sink.NewStoreSink(manager), cfg.FlushInterval)
	bufferedFiles.Start()
	bufferedStore.Start()

	hub := api.NewHub()
	dispatcher := sink.NewDispatcher(cfg.Origin,
		sink.NewConsoleSink(), bufferedFiles, bufferedStore, hub)

	server := api.NewServer(manager, hub, cfg.Channels)

	stopWatch, err := config.Watch(configPath, func(next *config.Config) {
		if err := fileSink.SetChannels(next.Channels); err != nil {
			log.Warnf("channel list reload: %v", err)
		}
		server.SetChannels(next.Channels)
		logging.SetLogLevel(next.LogLevel)
	})
	if err != nil {
		log.Warnf("configuration watching disabled: %v", err)
	} else {
		defer stopWatch()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.OnConnect()
	for _, ch := range cfg.Channels {
		dispatcher.OnJoin(ch)
	}

	var serveErr error
	if cfg.Listen != "" {
		serveErr = server.Run(ctx, cfg.Listen)
	} else {
		<-ctx.Done()
	}

	dispatcher.OnDisconnect("shutting down")
	_ = bufferedFiles.Close()
	_ = bufferedStore.Close()
	_ = fileSink.Close()
	log.Info("shutdown complete")
	return serveErr
}
