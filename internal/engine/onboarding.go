package engine

import (
	"context"
	"strings"

	"github.com/brobarber/brobot/internal/store"
)

// Funnel replies. The link reply carries the live booking link.
const (
	greetingReply = "¡Buenas bro! ¿Todo bien? 💈\n" +
		"¿Querés agendar un turno o tenés alguna consulta?"

	proposalReply = "Dale bro. ¿Querés que te pase el link de la agenda " +
		"así elegís el día y la hora que mejor te queden?"

	confirmedReply = "¡Genial bro! Quedó agendado tu turno. " +
		"Cualquier cosa escribime por acá. Nos vemos 💈"
)

func linkReply(bookingLink string) string {
	return "Acá tenés el link para agendarte:\n" + bookingLink +
		"\nElegís el servicio, el día y la hora, y listo."
}

var greetingPhrases = []string{
	"hola", "holi", "holis", "buenas", "buen dia", "buen día",
	"buenos dias", "buenos días", "buenas tardes", "buenas noches",
	"que tal", "qué tal", "como estas", "cómo estás", "todo bien",
	"como andas", "cómo andás",
}

var affirmativeWords = map[string]bool{
	"si": true, "sí": true, "dale": true, "ok": true, "oka": true,
	"okey": true, "perfecto": true, "claro": true, "joya": true,
	"genial": true, "obvio": true, "va": true,
}

var affirmativePhrases = []string{"de una", "me sirve"}

var linkRequestPhrases = []string{
	"pasame", "pasámelo", "mandame", "mandámelo", "dame", "envíame", "enviame",
	"link", "la agenda", "el enlace", "quiero agendar", "quiero un turno",
	"necesito turno", "necesito un turno", "agendame", "agendarme",
}

var confirmationPhrases = []string{
	"ya agende", "ya agendé", "ya me agende", "ya me agendé",
	"reserve", "reservé", "ya reserve", "ya reservé",
	"listo", "confirmado", "ya esta", "ya está", "quedo agendado", "quedó agendado",
}

// isGreeting matches short salutations. Long messages that happen to start
// with "hola" carry their real question elsewhere, so the match is bounded.
func isGreeting(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if len([]rune(lower)) > 40 {
		return false
	}
	for _, phrase := range greetingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// isAffirmative matches short agreement replies. Anything carrying a "no"
// is not agreement regardless of what else it contains.
func isAffirmative(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if len([]rune(lower)) > 20 {
		return false
	}

	words := strings.Fields(lower)
	for i, w := range words {
		words[i] = strings.Trim(w, ".,!¡¿?")
	}
	for _, w := range words {
		if w == "no" {
			return false
		}
	}
	for _, w := range words {
		if affirmativeWords[w] {
			return true
		}
	}
	for _, phrase := range affirmativePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func isLinkRequest(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if len([]rune(lower)) > 60 {
		return false
	}
	for _, phrase := range linkRequestPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func isConfirmation(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, phrase := range confirmationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// onboardingHandler walks a conversation through the booking funnel:
// greeting, scheduling proposal, link delivery, confirmation. It only fires
// while the funnel is incomplete and only when the message matches what the
// current state expects; otherwise it falls through.
type onboardingHandler struct {
	bookingLink string
}

func (h *onboardingHandler) Name() string { return "onboarding" }

func (h *onboardingHandler) Attempt(ctx context.Context, req *Request) (Result, error) {
	switch req.Flags.FunnelState {
	case "", store.FunnelNew:
		if isGreeting(req.Text) {
			req.Flags.FunnelState = store.FunnelGreeted
			req.Flags.Greeted = true
			req.FlagsDirty = true
			return Result{Text: greetingReply}, nil
		}

	case store.FunnelGreeted:
		// An explicit link request skips the proposal step: the customer
		// already asked for what the proposal would offer.
		if isLinkRequest(req.Text) {
			req.Flags.FunnelState = store.FunnelLinkOffered
			req.FlagsDirty = true
			return Result{Text: linkReply(h.bookingLink)}, nil
		}
		if isAffirmative(req.Text) {
			req.Flags.FunnelState = store.FunnelLinkOffered
			req.FlagsDirty = true
			return Result{Text: proposalReply}, nil
		}

	case store.FunnelLinkOffered:
		// Confirmation is checked first: "listo, ya agendé" must close
		// the funnel, not re-send the link.
		if isConfirmation(req.Text) {
			req.Flags.FunnelState = store.FunnelConfirmed
			req.FlagsDirty = true
			return Result{Text: confirmedReply}, nil
		}
		// Idempotent: asking for the link again re-emits it and the
		// state stays put.
		if isLinkRequest(req.Text) || isAffirmative(req.Text) {
			return Result{Text: linkReply(h.bookingLink)}, nil
		}

	case store.FunnelConfirmed:
		// Terminal: the funnel never speaks again.
	}
	return Result{}, nil
}
