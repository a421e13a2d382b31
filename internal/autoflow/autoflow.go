// Package autoflow produces rule-based replies from the catalog, with no
// model call. It is the cheap half of the generation strategy: tried first
// on expensive prompts, and the recovery path when generation fails.
package autoflow

import (
	"github.com/brobarber/brobot/internal/catalog"
	"github.com/brobarber/brobot/internal/intent"
)

// defaultKeys picks a canonical catalog entry when only a broad topic is
// known. Topics without an obviously safe default are left out and fall
// through to generation.
var defaultKeys = map[string]string{
	"precios":       "cuanto_sale",
	"ubicacion":     "donde_estan",
	"turnos":        "agendar_con_tiempo",
	"servicios":     "que_incluye_corte",
	"productos":     "venden_productos",
	"tiempo":        "cuanto_demora",
	"pago":          "pago_tarjeta",
	"cancelaciones": "cancelar_reagendar_1",
}

// Responder renders catalog replies with live links substituted in.
type Responder struct {
	catalog     *catalog.Catalog
	bookingLink string
	mapsLink    string
}

func NewResponder(cat *catalog.Catalog, bookingLink, mapsLink string) *Responder {
	return &Responder{catalog: cat, bookingLink: bookingLink, mapsLink: mapsLink}
}

// Respond returns the catalog reply for a resolution, or "" when the rules
// have nothing to say about this message.
func (r *Responder) Respond(res intent.Resolution, text string) string {
	if res.None() {
		return ""
	}

	key := res.CatalogKey
	if key == "" {
		key = defaultKeys[res.Intent]
	}
	if key == "" {
		return ""
	}

	tmpl, ok := r.catalog.Response(res.Intent, key)
	if !ok {
		return ""
	}

	reply := catalog.ReplaceLinks(tmpl, r.bookingLink, r.mapsLink)
	if catalog.MentionsBooking(text) {
		reply = catalog.ForceBookingLink(reply, r.bookingLink)
	}
	return reply
}
