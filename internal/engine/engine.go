// Package engine decides what to reply to each inbound message. The core is
// a priority-ordered chain of handlers; the first one producing a non-empty
// result wins and nothing below it runs. A handler failure is treated as "no
// answer from that tier", never as a fatal error, except in the terminal
// default tier.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brobarber/brobot/internal/autoflow"
	"github.com/brobarber/brobot/internal/intent"
	"github.com/brobarber/brobot/internal/notify"
	"github.com/brobarber/brobot/internal/policy"
	"github.com/brobarber/brobot/internal/providers"
	"github.com/brobarber/brobot/internal/store"
)

// Request is the per-message unit of work passed down the handler chain.
// Flags are loaded once before the chain runs; handlers that mutate them set
// FlagsDirty and the engine persists them after the chain finishes.
type Request struct {
	ConversationID string
	Text           string
	Kind           string
	Flags          store.Flags
	FlagsDirty     bool

	// resolution caches the intent lookup so the catalog and generative
	// tiers share one resolver pass.
	resolution *intent.Resolution
}

// Result is one handler's answer. Empty text means "try the next tier".
// Suppress ends the chain with no user-visible reply at all.
type Result struct {
	Text     string
	Suppress bool
}

// Handler is one tier of the priority chain.
type Handler interface {
	Name() string
	Attempt(ctx context.Context, req *Request) (Result, error)
}

// Outcome is the engine's final decision for one message.
type Outcome struct {
	Response   string
	HandledBy  string
	Suppressed bool
}

// Options carries the tuning the engine needs beyond its collaborators.
type Options struct {
	BookingLink       string
	MapsLink          string
	HandoffContact    string
	HistoryLimit      int
	TokenThreshold    int
	GenerationTimeout time.Duration
}

// Engine owns the handler chain and the collaborators the handlers share.
type Engine struct {
	handlers []Handler
	store    store.ConversationStore
	resolver *intent.Resolver
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New wires the fixed handler chain. Order is an invariant of the decision
// contract, not configuration.
func New(
	st store.ConversationStore,
	resolver *intent.Resolver,
	evaluator *policy.Evaluator,
	responder *autoflow.Responder,
	provider providers.Provider,
	notifier notify.Notifier,
	opts Options,
	logger *slog.Logger,
) *Engine {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 4
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = 30 * time.Second
	}

	e := &Engine{
		store:    st,
		resolver: resolver,
		logger:   logger,
		tracer:   otel.Tracer("brobot/engine"),
	}
	e.handlers = []Handler{
		&commandHandler{},
		&onboardingHandler{bookingLink: opts.BookingLink},
		&criticalHandler{
			evaluator:      evaluator,
			notifier:       notifier,
			bookingLink:    opts.BookingLink,
			handoffContact: opts.HandoffContact,
		},
		&catalogHandler{engine: e, responder: responder},
		&generativeHandler{
			engine:    e,
			responder: responder,
			provider:  provider,
			notifier:  notifier,
			store:     st,
			opts:      opts,
			logger:    logger,
		},
		&defaultHandler{},
	}
	return e
}

// Handlers exposes the tier names in evaluation order, for diagnostics.
func (e *Engine) Handlers() []string {
	names := make([]string, len(e.handlers))
	for i, h := range e.handlers {
		names[i] = h.Name()
	}
	return names
}

// Route decides the reply for one inbound message. An empty Outcome.Response
// means no reply is sent this turn. The returned error is non-nil only for
// fatal failures in the terminal tier.
func (e *Engine) Route(ctx context.Context, conversationID, text, kind string) (Outcome, error) {
	ctx, span := e.tracer.Start(ctx, "engine.route")
	defer span.End()

	flags, err := e.store.Flags(ctx, conversationID)
	if err != nil {
		// A broken flag read degrades to a fresh conversation rather
		// than dropping the message.
		e.logger.Warn("flag load failed, treating conversation as new",
			"conversation", conversationID, "error", err)
		flags = store.Flags{FunnelState: store.FunnelNew}
	}

	req := &Request{
		ConversationID: conversationID,
		Text:           text,
		Kind:           kind,
		Flags:          flags,
	}

	var outcome Outcome
	for i, h := range e.handlers {
		result, err := h.Attempt(ctx, req)
		if err != nil {
			if i == len(e.handlers)-1 {
				return Outcome{}, fmt.Errorf("engine: terminal handler %s: %w", h.Name(), err)
			}
			e.logger.Warn("handler failed, trying next tier",
				"handler", h.Name(), "conversation", conversationID, "error", err)
			continue
		}
		if result.Suppress {
			outcome = Outcome{HandledBy: h.Name(), Suppressed: true}
			break
		}
		if result.Text != "" {
			outcome = Outcome{Response: result.Text, HandledBy: h.Name()}
			break
		}
	}

	if req.FlagsDirty {
		if err := e.store.SetFlags(ctx, conversationID, req.Flags); err != nil {
			e.logger.Error("flag persist failed",
				"conversation", conversationID, "error", err)
		}
	}

	span.SetAttributes(
		attribute.String("engine.handled_by", outcome.HandledBy),
		attribute.Bool("engine.suppressed", outcome.Suppressed),
	)
	return outcome, nil
}

// resolve runs intent resolution at most once per request.
func (e *Engine) resolve(ctx context.Context, req *Request) intent.Resolution {
	if req.resolution == nil {
		res := e.resolver.Resolve(ctx, req.Text)
		req.resolution = &res
	}
	return *req.resolution
}
