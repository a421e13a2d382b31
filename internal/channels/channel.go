// Package channels connects the engine's decisions to the messaging
// platforms that deliver them. The outbound side of the bus is consumed
// here; the inbound side is fed by the gateway.
package channels

import (
	"context"
	"sync"

	"github.com/brobarber/brobot/internal/bus"
)

// Channel is a delivery endpoint for outbound messages.
type Channel interface {
	// Name returns the channel identifier (e.g. "whatsapp").
	Name() string

	// Start begins any background work. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts the channel down.
	Stop(ctx context.Context) error

	// Send delivers one outbound message.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning reports whether the channel is active.
	IsRunning() bool
}

// BaseChannel carries the state every channel shares.
type BaseChannel struct {
	name    string
	bus     *bus.MessageBus
	mu      sync.RWMutex
	running bool
}

func NewBaseChannel(name string, msgBus *bus.MessageBus) *BaseChannel {
	return &BaseChannel{name: name, bus: msgBus}
}

func (b *BaseChannel) Name() string { return b.name }

func (b *BaseChannel) Bus() *bus.MessageBus { return b.bus }

func (b *BaseChannel) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

func (b *BaseChannel) SetRunning(running bool) {
	b.mu.Lock()
	b.running = running
	b.mu.Unlock()
}
