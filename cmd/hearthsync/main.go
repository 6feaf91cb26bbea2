// Hearthsync - cloud home-automation mirror daemon
//
// The daemon keeps a local in-memory mirror of a remote home-automation
// account: structures, climate/hazard/camera devices, and their live state.
// It exposes the mirror over a local read-only HTTP API and optionally
// records every detected change to InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rfoxley/hearthsync"
	"github.com/rfoxley/hearthsync/internal/api"
	"github.com/rfoxley/hearthsync/internal/cloudauth"
	"github.com/rfoxley/hearthsync/internal/history"
	"github.com/rfoxley/hearthsync/internal/infrastructure/config"
	"github.com/rfoxley/hearthsync/internal/infrastructure/logging"
	"github.com/rfoxley/hearthsync/internal/infrastructure/mqtt"
	"github.com/rfoxley/hearthsync/internal/infrastructure/stream"
	"github.com/rfoxley/hearthsync/internal/realtime"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearthsync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Cloud auth transport
	transport := cloudauth.New(cloudauth.Config{
		ExchangeURL: cfg.Cloud.ExchangeURL,
		RevokeURL:   cfg.Cloud.RevokeURL,
		Timeout:     cfg.GetCloudTimeout(),
	})
	transport.SetLogger(log)

	// Push feed
	source, closeSource, err := connectSource(cfg, log)
	if err != nil {
		return fmt.Errorf("connecting push feed: %w", err)
	}
	defer func() {
		log.Info("closing push feed")
		if closeErr := closeSource(); closeErr != nil {
			log.Error("error closing push feed", "error", closeErr)
		}
	}()

	// History recorder (optional)
	var recorder *history.Recorder
	if cfg.History.Enabled {
		recorder, err = history.Connect(cfg.History)
		if err != nil {
			return fmt.Errorf("connecting history: %w", err)
		}
		defer func() {
			log.Info("closing history recorder")
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing history recorder", "error", closeErr)
			}
		}()
		recorder.SetOnError(func(err error) {
			log.Error("history write error", "error", err)
		})
		log.Info("history connected",
			"url", cfg.History.URL,
			"org", cfg.History.Org,
			"bucket", cfg.History.Bucket,
		)
	} else {
		log.Info("history disabled")
	}

	// Mirror client
	client, err := hearthsync.New(hearthsync.Config{
		Credential: cfg.Cloud.Credential,
		Source:     source,
		Auth:       transport,
		Revoker:    transport,
		Logger:     log,
		History:    recorder,
	})
	if err != nil {
		return fmt.Errorf("building mirror client: %w", err)
	}
	defer func() {
		log.Info("closing mirror client")
		client.Close()
	}()

	client.OnStateChange(func(state hearthsync.SessionState) {
		log.Info("session state changed", "state", string(state))
	})

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("starting mirror: %w", err)
	}

	// Wait for the first full sync before declaring the mirror usable.
	if err := client.WaitInitialized(ctx); err != nil {
		return fmt.Errorf("waiting for first full sync: %w", err)
	}
	log.Info("first full sync complete",
		"structures", len(client.Structures()),
		"climate", len(client.Devices(hearthsync.CategoryClimate)),
		"hazard", len(client.Devices(hearthsync.CategoryHazard)),
		"camera", len(client.Devices(hearthsync.CategoryCamera)),
	)

	// Local status API (optional)
	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Registry: client.Registry(),
			Session:  client.Session(),
			Sync:     client,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("building status API: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting status API: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing status API", "error", closeErr)
			}
		}()
		log.Info("status API listening", "host", cfg.API.Host, "port", cfg.API.Port)
	} else {
		log.Info("status API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Status API
	// 2. Mirror client
	// 3. History recorder (if enabled)
	// 4. Push feed

	log.Info("Hearthsync stopped")
	return nil
}

// connectSource opens the configured push-feed transport.
func connectSource(cfg *config.Config, log *logging.Logger) (realtime.Source, func() error, error) {
	switch cfg.Realtime.Driver {
	case "mqtt":
		client, err := mqtt.Connect(cfg.Realtime.MQTT)
		if err != nil {
			return nil, nil, err
		}
		client.SetLogger(log)
		client.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		client.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Realtime.MQTT.Broker.Host, cfg.Realtime.MQTT.Broker.Port),
			"client_id", cfg.Realtime.MQTT.Broker.ClientID,
		)
		return client, client.Close, nil

	case "websocket":
		client, err := stream.Dial(cfg.Realtime.WebSocket, cfg.Cloud.Credential)
		if err != nil {
			return nil, nil, err
		}
		client.SetLogger(log)
		log.Info("websocket feed connected", "url", cfg.Realtime.WebSocket.URL)
		return client, client.Close, nil

	default:
		return nil, nil, errors.New("unsupported realtime driver: " + cfg.Realtime.Driver)
	}
}

// getConfigPath returns the configuration file path.
// Uses HEARTHSYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTHSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
