package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brobarber/brobot/internal/bus"
)

const reconnectDelay = 5 * time.Second

// bridge connects to a whatsapp-web.js bridge over WebSocket. The bridge
// owns the WhatsApp protocol; this side exchanges JSON frames: inbound
// messages are published to the bus, outbound frames carry the reply text.
type bridge struct {
	url    string
	bus    *bus.MessageBus
	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

func newBridge(url string, msgBus *bus.MessageBus) *bridge {
	return &bridge{url: url, bus: msgBus}
}

func (b *bridge) start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	if err := b.connect(); err != nil {
		slog.Warn("whatsapp bridge connection failed, will retry", "error", err)
	}
	go b.listenLoop(ctx)
}

func (b *bridge) stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

func (b *bridge) connect() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(b.url, nil)
	if err != nil {
		return fmt.Errorf("whatsapp: dial bridge %s: %w", b.url, err)
	}
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	slog.Info("whatsapp bridge connected", "url", b.url)
	return nil
}

type bridgeFrame struct {
	Type      string `json:"type"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

func (b *bridge) send(msg bus.OutboundMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return fmt.Errorf("whatsapp: bridge not connected")
	}

	data, err := json.Marshal(bridgeFrame{Type: "message", To: msg.ChatID, Content: msg.Content})
	if err != nil {
		return fmt.Errorf("whatsapp: marshal bridge frame: %w", err)
	}
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("whatsapp: bridge write: %w", err)
	}
	return nil
}

// listenLoop reads inbound frames and reconnects on failure until ctx is
// cancelled.
func (b *bridge) listenLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()

		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			if err := b.connect(); err != nil {
				slog.Warn("whatsapp bridge reconnect failed", "error", err)
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("whatsapp bridge read failed, reconnecting", "error", err)
			b.mu.Lock()
			if b.conn != nil {
				b.conn.Close()
				b.conn = nil
			}
			b.mu.Unlock()
			continue
		}

		var frame bridgeFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Debug("whatsapp bridge sent malformed frame", "error", err)
			continue
		}
		if frame.Type != "message" || frame.From == "" {
			continue
		}

		kind := frame.Kind
		if kind == "" {
			kind = "text"
		}
		b.bus.PublishInbound(bus.InboundMessage{
			Channel:   "whatsapp",
			SenderID:  frame.From,
			MessageID: frame.MessageID,
			Content:   frame.Content,
			Kind:      kind,
		})
	}
}
