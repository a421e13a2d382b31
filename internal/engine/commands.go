package engine

import (
	"context"
	"strings"

	"github.com/brobarber/brobot/internal/store"
)

const (
	cancelledReply = "❌ Operación cancelada."

	helpReply = "ℹ️ Te puedo ayudar con:\n" +
		"• Precios y servicios\n" +
		"• Agendar o reagendar un turno\n" +
		"• Ubicación de la barbería\n" +
		"• Avisar que llegás tarde\n\n" +
		"Escribime tu consulta y te respondo al toque."
)

// commandHandler answers explicit control words before any other logic runs.
type commandHandler struct{}

func (h *commandHandler) Name() string { return "command" }

func (h *commandHandler) Attempt(ctx context.Context, req *Request) (Result, error) {
	switch normalizeCommand(req.Text) {
	case "cancelar", "salir", "cancel":
		// Cancelling resets the conversation; the funnel starts over on
		// the next message.
		req.Flags = store.Flags{FunnelState: store.FunnelNew}
		req.FlagsDirty = true
		return Result{Text: cancelledReply}, nil
	case "ayuda", "help":
		return Result{Text: helpReply}, nil
	}
	return Result{}, nil
}

// normalizeCommand reduces the message to a bare control word. Commands must
// be the whole message; "quiero cancelar el turno" is not a command.
func normalizeCommand(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.Trim(text, "*!.¡¿? ")
}
