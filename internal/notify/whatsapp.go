package notify

import (
	"context"
	"fmt"

	"github.com/brobarber/brobot/internal/bus"
)

// WhatsAppNotifier sends events to the shop's own WhatsApp number through
// the outbound bus, so operators hear about failures in the same app the
// customers use.
type WhatsAppNotifier struct {
	bus       *bus.MessageBus
	opsChatID string
	channel   string
}

func NewWhatsAppNotifier(b *bus.MessageBus, channel, opsChatID string) *WhatsAppNotifier {
	return &WhatsAppNotifier{bus: b, channel: channel, opsChatID: opsChatID}
}

func (w *WhatsAppNotifier) Notify(ctx context.Context, event, detail string) {
	w.bus.PublishOutbound(bus.OutboundMessage{
		Channel: w.channel,
		ChatID:  w.opsChatID,
		Content: fmt.Sprintf("⚠️ %s\n%s", event, detail),
	})
}
