package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/bogdan-lmk/discord-parer/internal/bot"
	"github.com/bogdan-lmk/discord-parer/internal/config"
	"github.com/bogdan-lmk/discord-parer/internal/constants"
	"github.com/bogdan-lmk/discord-parer/internal/database"
	"github.com/bogdan-lmk/discord-parer/internal/models"
	"github.com/bogdan-lmk/discord-parer/internal/privacy"
	"github.com/bogdan-lmk/discord-parer/internal/retry"
	"github.com/bogdan-lmk/discord-parer/internal/service"
	"github.com/bogdan-lmk/discord-parer/internal/tracing"
	"github.com/bogdan-lmk/discord-parer/internal/validation"
	"github.com/bogdan-lmk/discord-parer/internal/versioning"
	"github.com/bogdan-lmk/discord-parer/pkg/circuitbreaker"
	"github.com/bogdan-lmk/discord-parer/pkg/discord"
	discordtypes "github.com/bogdan-lmk/discord-parer/pkg/discord/types"
	"github.com/bogdan-lmk/discord-parer/pkg/telegram"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("discord-parer %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting discord-parer")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"accounts":  len(cfg.Discord.Tokens),
		"bot_token": privacy.MaskBotToken(cfg.Telegram.BotToken),
		"chat_id":   privacy.MaskChatID(strconv.FormatInt(cfg.Telegram.ChatID, 10)),
	}).Info("Configuration loaded")

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Initialize OpenTelemetry tracing
	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize database with exponential backoff retry
	backoffConfig := retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	}

	var db *database.Database
	err = retry.NewBackoff(backoffConfig).Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	catalog := service.NewCatalog(db)
	if err := catalog.Load(ctx); err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	registry, gateways, err := registerAccounts(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := validation.ValidateBotToken(cfg.Telegram.BotToken); err != nil {
		return fmt.Errorf("telegram bot token: %w", err)
	}

	telegramClient := telegram.NewClientWithLogger(telegram.ClientConfig{
		BaseURL:  cfg.Telegram.APIBaseURL,
		BotToken: cfg.Telegram.BotToken,
		Timeout:  time.Duration(cfg.Telegram.TimeoutSec) * time.Second,
	}, logger)

	deliveryBackoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		Jitter:       true,
	})

	formatter := service.NewFormatter(cfg.Telegram.ShowTimestamps, cfg.Telegram.UseTopics)
	sink := service.NewTelegramSink(telegramClient, formatter, deliveryBackoff, cfg.Telegram.ChatID, cfg.Telegram.UseTopics, logger)
	if err := sink.VerifyChat(ctx); err != nil {
		return err
	}

	discoverer := service.NewDiscoverer(registry, catalog, cfg.Relay.MaxConcurrentDiscovery, logger)
	relay := service.NewRelay(registry, catalog, db, sink, *cfg, logger)
	commands := service.NewCommands(catalog, registry, discoverer, relay, db)

	if cfg.Relay.DiscoveryOnStartup {
		logger.Info("Running startup discovery pass")
		diff := discoverer.DiscoverAll(ctx)
		if len(diff.AccountsFailed) > 0 {
			logger.WithField("accounts", diff.AccountsFailed).Warn("Some accounts failed startup discovery")
		}
	}

	if err := relay.Start(ctx); err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}
	defer relay.Stop()

	for _, gw := range gateways {
		go gw.Run(ctx)
		go relay.ConsumeGateway(gw.Events())
	}

	scheduler := service.NewScheduler(commands, db,
		cfg.Relay.DiscoveryIntervalHours,
		cfg.Retention.CleanupIntervalHours,
		cfg.Retention.Days,
		logger)
	go scheduler.Start(ctx)
	defer scheduler.Stop()

	commandBot := bot.New(telegramClient, commands, sink, cfg.Telegram.ChatID, logger)
	go commandBot.Run(ctx)

	server := NewServer(cfg, commands, versioning.NewInfo(Version, GitCommit, BuildTime), logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

// registerAccounts builds a client, circuit breaker and optional gateway for
// every configured token. One bad token fails startup loudly instead of
// silently forwarding from a subset of accounts.
func registerAccounts(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (*service.AccountRegistry, []*discord.Gateway, error) {
	registry := service.NewAccountRegistry(logger)
	var gateways []*discord.Gateway

	for i, token := range cfg.Discord.Tokens {
		if err := validation.ValidateToken(token); err != nil {
			return nil, nil, fmt.Errorf("account %d: %w", i+1, err)
		}

		client := discord.NewClientWithLogger(discord.ClientConfig{
			BaseURL: cfg.Discord.APIBaseURL,
			Token:   token,
			Timeout: time.Duration(cfg.Discord.TimeoutSec) * time.Second,
		}, logger)

		breaker := circuitbreaker.NewWithLogger(
			fmt.Sprintf("discord-account-%d", i+1),
			5, 30*time.Second, logger)

		session, err := registry.Register(ctx, client, breaker)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to register account %d: %w", i+1, err)
		}

		if cfg.Discord.GatewayEnabled {
			gw := discord.NewGateway(token, cfg.Discord.APIBaseURL, logger, func(state discordtypes.ConnectionState) {
				switch state {
				case discordtypes.ConnectionConnected:
					session.SetState(models.AccountConnected)
				case discordtypes.ConnectionConnecting:
					session.SetState(models.AccountConnecting)
				default:
					session.SetState(models.AccountDegraded)
				}
			})
			gateways = append(gateways, gw)
		}
	}

	return registry, gateways, nil
}
