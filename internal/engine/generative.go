package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brobarber/brobot/internal/autoflow"
	"github.com/brobarber/brobot/internal/budget"
	"github.com/brobarber/brobot/internal/catalog"
	"github.com/brobarber/brobot/internal/fallback"
	"github.com/brobarber/brobot/internal/intent"
	"github.com/brobarber/brobot/internal/notify"
	"github.com/brobarber/brobot/internal/providers"
	"github.com/brobarber/brobot/internal/store"
)

// generativeHandler is the cost-aware generative tier. It builds the prompt,
// lets the budget decide whether generation or the automatic flow goes
// first, and contains generation failures: operations are notified the
// moment a generation fails (exactly once), the automatic flow is the
// rescue, and if that too yields nothing the reply is suppressed. The user
// never sees an error string.
type generativeHandler struct {
	engine    *Engine
	responder *autoflow.Responder
	provider  providers.Provider
	notifier  notify.Notifier
	store     store.ConversationStore
	opts      Options
	logger    *slog.Logger
}

func (h *generativeHandler) Name() string { return "generative" }

func (h *generativeHandler) Attempt(ctx context.Context, req *Request) (Result, error) {
	if h.provider == nil {
		return Result{}, nil
	}
	res := h.engine.resolve(ctx, req)
	prompt := h.buildPrompt(ctx, req, res)
	decision := budget.Decide(h.estimateTokens(ctx, prompt), h.opts.TokenThreshold)

	var generationFailed bool
	generateStep := fallback.Step[string]{Name: "generate", Run: func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, h.opts.GenerationTimeout)
		defer cancel()

		reply, err := h.provider.Generate(ctx, prompt.String())
		if err != nil {
			// Operations hear about every failed generation, even when
			// the automatic flow rescues the reply.
			generationFailed = true
			h.notifier.Notify(ctx, "generation_failed",
				"conversación "+req.ConversationID+": "+err.Error())
			return "", fmt.Errorf("generate: %w", err)
		}
		return h.polish(reply, req.Text), nil
	}}
	automaticStep := fallback.Step[string]{Name: "automatic", Run: func(ctx context.Context) (string, error) {
		return h.responder.Respond(res, req.Text), nil
	}}

	steps := []fallback.Step[string]{generateStep, automaticStep}
	if decision.Strategy == budget.AutomaticFirst {
		steps = []fallback.Step[string]{automaticStep, generateStep}
	}

	result, ok := fallback.First(ctx, h.logger, steps)
	if ok {
		return Result{Text: result.Value}, nil
	}
	if generationFailed {
		return Result{Suppress: true}, nil
	}
	return Result{}, nil
}

// buildPrompt assembles persona, factual background, compressed history and
// the customer message. History is only fetched once the conversation has
// context worth sending: a greeted customer or a known topic.
func (h *generativeHandler) buildPrompt(ctx context.Context, req *Request, res intent.Resolution) *budget.Prompt {
	var p budget.Prompt
	p.Add(budget.Persona)
	p.Add("Información de la barbería:\n" + catalog.Knowledge(res.Intent))

	if req.Flags.Greeted || !res.None() {
		msgs, err := h.store.RecentMessages(ctx, req.ConversationID, h.opts.HistoryLimit)
		if err != nil {
			h.logger.Warn("history fetch failed, prompting without history",
				"conversation", req.ConversationID, "error", err)
		} else if compressed := budget.CompressHistory(msgs); compressed != "" {
			p.Add("Conversación reciente:\n" + compressed)
		}
	}

	p.Add("Mensaje del cliente: " + req.Text + "\nTu respuesta:")
	return &p
}

// estimateTokens prefers the provider's exact count when it offers one; a
// slow or failed count falls back to the rune heuristic so the decision
// never stalls the reply.
func (h *generativeHandler) estimateTokens(ctx context.Context, prompt *budget.Prompt) int {
	counter, ok := h.provider.(providers.TokenCounter)
	if !ok {
		return prompt.EstimatedTokens()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	tokens, err := counter.CountTokens(ctx, prompt.String())
	if err != nil || tokens <= 0 {
		return prompt.EstimatedTokens()
	}
	return tokens
}

// polish substitutes any link placeholders the model echoed and makes sure
// booking questions always leave with the booking link attached.
func (h *generativeHandler) polish(reply, userText string) string {
	reply = catalog.ReplaceLinks(reply, h.opts.BookingLink, h.opts.MapsLink)
	if catalog.MentionsBooking(userText) {
		reply = catalog.ForceBookingLink(reply, h.opts.BookingLink)
	}
	return reply
}
