package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telhawk-systems/capi-relay/common/deliverystats"
	"github.com/telhawk-systems/capi-relay/common/logging"
	"github.com/telhawk-systems/capi-relay/common/messaging"
	"github.com/telhawk-systems/capi-relay/relay/internal/config"
	"github.com/telhawk-systems/capi-relay/relay/internal/handlers"
	"github.com/telhawk-systems/capi-relay/relay/internal/metaclient"
	"github.com/telhawk-systems/capi-relay/relay/internal/metrics"
	"github.com/telhawk-systems/capi-relay/relay/internal/routing"
	"github.com/telhawk-systems/capi-relay/relay/internal/server"
	"github.com/telhawk-systems/capi-relay/relay/internal/service"
	"github.com/telhawk-systems/capi-relay/relay/internal/userdata"

	natsclient "github.com/telhawk-systems/capi-relay/common/messaging/nats"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("capi-relay"))
	logging.SetDefault(logger)

	slog.Info("Starting CAPI relay",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}
	slog.Info("Meta Conversions API configured",
		slog.String("base_url", cfg.Meta.BaseURL),
		slog.String("api_version", cfg.Meta.APIVersion),
		logging.PixelID(cfg.Meta.PixelID),
		slog.Bool("test_events", cfg.Meta.TestEventCode != ""),
	)
	if !cfg.Meta.Configured() {
		slog.Warn("META_PIXEL_ID or META_ACCESS_TOKEN not set; conversions will be dropped")
	}

	m := metrics.New(nil)

	var opts []service.Option
	opts = append(opts, service.WithMetrics(m))

	// Delivery stats collector
	var statsClient *deliverystats.Client
	if cfg.Redis.Enabled {
		instanceID := cfg.Redis.InstanceID
		if instanceID == "" {
			hostname, _ := os.Hostname()
			instanceID = fmt.Sprintf("%s-%d", hostname, os.Getpid())
		}

		statsClient, err = deliverystats.NewClient(cfg.Redis.URL, instanceID)
		if err != nil {
			slog.Warn("Failed to initialize delivery stats", logging.Error(err))
			slog.Info("Delivery stats will not be collected")
		} else {
			collector := deliverystats.NewCollector(statsClient, cfg.Redis.FlushInterval, logger.Logger)
			defer statsClient.Close()
			defer collector.Stop()
			opts = append(opts, service.WithStats(collector))
			slog.Info("Delivery stats enabled",
				slog.Duration("flush_interval", cfg.Redis.FlushInterval),
				slog.String("instance", instanceID),
			)
		}
	} else {
		slog.Info("Redis disabled - delivery stats will not be collected")
	}

	// Outcome publisher
	var publisher messaging.Publisher = messaging.NoopPublisher{}
	if cfg.NATS.Enabled {
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Token = cfg.NATS.Token
		natsCfg.Logger = logger.Logger

		client, err := natsclient.NewClient(natsCfg)
		if err != nil {
			slog.Warn("Failed to connect to NATS", logging.Error(err))
			slog.Info("Conversion outcomes will not be published")
		} else {
			publisher = client
			defer client.Close()
			slog.Info("Publishing conversion outcomes", slog.String("nats_url", cfg.NATS.URL))
		}
	} else {
		slog.Info("NATS disabled - conversion outcomes will not be published")
	}
	opts = append(opts, service.WithPublisher(publisher))

	sender := metaclient.NewClient(metaclient.Config{
		BaseURL:       cfg.Meta.BaseURL,
		APIVersion:    cfg.Meta.APIVersion,
		PixelID:       cfg.Meta.PixelID,
		AccessToken:   cfg.Meta.AccessToken,
		TestEventCode: cfg.Meta.TestEventCode,
		ActionSource:  cfg.Meta.ActionSource,
		Timeout:       cfg.Meta.Timeout,
	}, logger)

	relayService := service.NewRelayService(
		userdata.NewBuilder(cfg.Relay.DefaultCountry),
		routing.NewRouter(cfg.Relay.DefaultCurrency),
		sender,
		logger,
		opts...,
	)

	// Initialize HTTP handlers
	handler := handlers.NewWebhookHandler(relayService, m, logger, cfg.Relay.MaxBodyBytes)
	handler.AddCheck("meta", func(context.Context) error {
		if !sender.Configured() {
			return metaclient.ErrNotConfigured
		}
		return nil
	})
	if statsClient != nil {
		handler.AddCheck("redis", statsClient.Ping)
	}
	if cfg.NATS.Enabled {
		handler.AddCheck("nats", func(context.Context) error {
			if !publisher.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		})
	}

	router := server.NewRouter(handler, nil, logger.Logger)

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("CAPI relay listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		slog.Error("Server error", logging.Error(err))
	}

	slog.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}

	slog.Info("Server stopped")
}

// shutdownTimeout leaves in-flight sends time to finish.
func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return cfg.Meta.Timeout
}
