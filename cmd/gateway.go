package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/brobarber/brobot/internal/autoflow"
	"github.com/brobarber/brobot/internal/bus"
	"github.com/brobarber/brobot/internal/catalog"
	"github.com/brobarber/brobot/internal/channels"
	"github.com/brobarber/brobot/internal/channels/whatsapp"
	"github.com/brobarber/brobot/internal/config"
	"github.com/brobarber/brobot/internal/engine"
	"github.com/brobarber/brobot/internal/gateway"
	"github.com/brobarber/brobot/internal/intent"
	"github.com/brobarber/brobot/internal/notify"
	"github.com/brobarber/brobot/internal/policy"
	"github.com/brobarber/brobot/internal/providers"
	"github.com/brobarber/brobot/internal/store"
	"github.com/brobarber/brobot/internal/telemetry"
)

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		logger.Info("run 'brobot onboard' to create a configuration, or 'brobot doctor' to see what is missing")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("telemetry setup failed, continuing without traces", "error", err)
	} else {
		defer shutdownTelemetry(context.Background())
	}

	cat, err := catalog.Load(config.ExpandHome(cfg.Catalog.Path))
	if err != nil {
		logger.Error("failed to load catalog", "path", cfg.Catalog.Path, "error", err)
		os.Exit(1)
	}
	if cfg.Catalog.HotReload && cfg.Catalog.Path != "" {
		if err := cat.Watch(ctx, logger); err != nil {
			logger.Warn("catalog hot reload unavailable", "error", err)
		}
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		logger.Error("failed to open conversation store", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("conversation store ready", "driver", cfg.Database.Driver)

	provider := providers.NewGeminiProvider(
		cfg.Provider.APIKey, cfg.Provider.APIBase,
		cfg.Provider.Model, cfg.Provider.MaxOutputTokens,
	)

	msgBus := bus.New()

	waChannel, err := whatsapp.New(cfg.WhatsApp, msgBus)
	if err != nil {
		logger.Error("failed to set up WhatsApp channel", "error", err)
		os.Exit(1)
	}
	channelMgr := channels.NewManager(msgBus)
	channelMgr.Register(waChannel)

	notifier := buildNotifier(cfg.Ops, msgBus, logger)

	resolver := intent.NewResolver(cat, provider, logger, cfg.Provider.Timeout())
	evaluator := policy.NewEvaluator(provider, logger, cfg.Provider.Timeout())
	responder := autoflow.NewResponder(cat, cfg.Links.Booking, cfg.Links.Maps)

	eng := engine.New(st, resolver, evaluator, responder, provider, notifier, engine.Options{
		BookingLink:       cfg.Links.Booking,
		MapsLink:          cfg.Links.Maps,
		HandoffContact:    cfg.Policy.HandoffContact,
		HistoryLimit:      cfg.Budget.HistoryLimit,
		TokenThreshold:    cfg.Budget.TokenThreshold,
		GenerationTimeout: cfg.Provider.Timeout(),
	}, logger)

	consumer := engine.NewConsumer(eng, msgBus, st, cfg.Engine.Workers, logger)

	srv := gateway.NewServer(cfg.Gateway, cfg.Ops.WhatsAppNumber, msgBus, waChannel, provider, logger)

	if err := channelMgr.StartAll(ctx); err != nil {
		logger.Error("failed to start channels", "error", err)
		os.Exit(1)
	}
	defer channelMgr.StopAll(context.Background())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error { return consumer.Run(gctx) })

	logger.Info("brobot gateway running", "version", Version, "model", cfg.Provider.Model)

	if err := g.Wait(); err != nil {
		logger.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway shut down cleanly")
}

// buildNotifier assembles the operations notification fan-out. The log sink
// is always present; WhatsApp and Telegram sinks join when configured.
func buildNotifier(ops config.OpsConfig, msgBus *bus.MessageBus, logger *slog.Logger) notify.Notifier {
	sinks := notify.Multi{&notify.LogNotifier{Logger: logger}}

	if ops.WhatsAppNumber != "" {
		sinks = append(sinks, notify.NewWhatsAppNotifier(msgBus, "whatsapp", ops.WhatsAppNumber))
		logger.Info("ops notifications via WhatsApp", "number", ops.WhatsAppNumber)
	}
	if ops.TelegramToken != "" && ops.TelegramChatID != 0 {
		tg, err := notify.NewTelegramNotifier(ops.TelegramToken, ops.TelegramChatID, logger)
		if err != nil {
			logger.Warn("telegram notifier unavailable", "error", err)
		} else {
			sinks = append(sinks, tg)
			logger.Info("ops notifications via Telegram", "chat_id", ops.TelegramChatID)
		}
	}
	return sinks
}
