package engine

import "context"

const (
	defaultReply       = "Escribime lo que necesites o escribí *ayuda* para ver las opciones."
	defaultReplyPrefix = "¡Bro! ¿Todo bien?\n\n"
)

// defaultHandler is the terminal tier: a fixed reply when every prior tier
// came up empty. It cannot fall through; a failure here is fatal to the call.
type defaultHandler struct{}

func (h *defaultHandler) Name() string { return "default" }

func (h *defaultHandler) Attempt(ctx context.Context, req *Request) (Result, error) {
	if req.Flags.Greeted {
		return Result{Text: defaultReply}, nil
	}
	return Result{Text: defaultReplyPrefix + defaultReply}, nil
}
