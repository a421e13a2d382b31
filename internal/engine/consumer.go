package engine

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/brobarber/brobot/internal/bus"
	"github.com/brobarber/brobot/internal/sessions"
	"github.com/brobarber/brobot/internal/store"
)

// Consumer pulls inbound messages off the bus and runs them through the
// engine. Messages from the same sender are serialized so the funnel state
// machine never sees interleaved turns; different senders proceed in
// parallel across the worker pool.
type Consumer struct {
	engine   *Engine
	bus      *bus.MessageBus
	store    store.ConversationStore
	sessions *sessions.Manager
	workers  int
	logger   *slog.Logger
}

func NewConsumer(eng *Engine, msgBus *bus.MessageBus, st store.ConversationStore, workers int, logger *slog.Logger) *Consumer {
	if workers <= 0 {
		workers = 4
	}
	return &Consumer{
		engine:   eng,
		bus:      msgBus,
		store:    st,
		sessions: sessions.NewManager(),
		workers:  workers,
		logger:   logger,
	}
}

// Run blocks consuming messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workers; i++ {
		g.Go(func() error {
			for {
				msg, ok := c.bus.ConsumeInbound(ctx)
				if !ok {
					return nil
				}
				c.handle(ctx, msg)
			}
		})
	}
	return g.Wait()
}

func (c *Consumer) handle(ctx context.Context, msg bus.InboundMessage) {
	c.sessions.Do(msg.SenderID, func() {
		if err := c.store.AppendMessage(ctx, msg.SenderID, "user", msg.Content); err != nil {
			c.logger.Error("persist user message failed",
				"sender", msg.SenderID, "error", err)
		}

		outcome, err := c.engine.Route(ctx, msg.SenderID, msg.Content, msg.Kind)
		if err != nil {
			c.logger.Error("routing failed", "sender", msg.SenderID, "error", err)
			return
		}
		if outcome.Suppressed || outcome.Response == "" {
			c.logger.Info("no reply for message",
				"sender", msg.SenderID, "handled_by", outcome.HandledBy,
				"suppressed", outcome.Suppressed)
			return
		}

		if err := c.store.AppendMessage(ctx, msg.SenderID, "assistant", outcome.Response); err != nil {
			c.logger.Error("persist reply failed",
				"sender", msg.SenderID, "error", err)
		}
		c.bus.PublishOutbound(bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.SenderID,
			Content: outcome.Response,
		})
		c.logger.Info("reply dispatched",
			"sender", msg.SenderID, "handled_by", outcome.HandledBy)
	})
}
