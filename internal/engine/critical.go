package engine

import (
	"context"
	"strings"

	"github.com/brobarber/brobot/internal/notify"
	"github.com/brobarber/brobot/internal/policy"
)

// handoffReply always names the human the client can reach directly.
func handoffReply(contact string) string {
	reply := "Dale bro, ya le aviso al equipo y en un ratito te escribe una persona " +
		"para ayudarte con eso."
	if contact != "" {
		reply += "\nSi te urge, escribile directo: " + contact
	}
	return reply
}

var handoffPhrases = []string{
	"hablar con una persona",
	"hablar con alguien",
	"hablar con un humano",
	"hablar con el barbero",
	"atencion humana",
	"atención humana",
	"persona real",
	"sos un bot",
	"no quiero hablar con un bot",
}

func isHandoffRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range handoffPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// criticalHandler answers safety-relevant messages: lateness notices and
// requests for a human. It runs before the catalog and generative tiers so
// these replies are never paraphrased.
type criticalHandler struct {
	evaluator      *policy.Evaluator
	notifier       notify.Notifier
	bookingLink    string
	handoffContact string
}

func (h *criticalHandler) Name() string { return "critical" }

func (h *criticalHandler) Attempt(ctx context.Context, req *Request) (Result, error) {
	if isHandoffRequest(req.Text) {
		h.notifier.Notify(ctx, "human_handoff_requested",
			"conversación "+req.ConversationID+": "+req.Text)
		return Result{Text: handoffReply(h.handoffContact)}, nil
	}

	assessment := h.evaluator.Assess(ctx, req.Text)
	if !assessment.IsDelay {
		return Result{}, nil
	}
	return Result{Text: policy.Message(assessment.Severity, h.bookingLink)}, nil
}
