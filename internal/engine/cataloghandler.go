package engine

import (
	"context"

	"github.com/brobarber/brobot/internal/autoflow"
)

// catalogHandler answers with a curated response when intent resolution
// lands on a specific catalog entry. Broad topic matches carry no catalog
// key and fall through to the generative tier, where the automatic flow is
// the budget reorder target and the rescue after a failed generation. The
// resolution is computed lazily and shared with that tier.
type catalogHandler struct {
	engine    *Engine
	responder *autoflow.Responder
}

func (h *catalogHandler) Name() string { return "catalog" }

func (h *catalogHandler) Attempt(ctx context.Context, req *Request) (Result, error) {
	res := h.engine.resolve(ctx, req)
	if res.CatalogKey == "" {
		return Result{}, nil
	}
	return Result{Text: h.responder.Respond(res, req.Text)}, nil
}
