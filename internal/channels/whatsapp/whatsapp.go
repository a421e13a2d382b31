// Package whatsapp delivers replies through the WhatsApp Cloud API, or
// through a whatsapp-web.js bridge over WebSocket when one is configured.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/brobarber/brobot/internal/bus"
	"github.com/brobarber/brobot/internal/channels"
	"github.com/brobarber/brobot/internal/config"
)

// Channel sends messages via the Cloud API. Outbound sends wait a random
// humanizing delay and pass through a rate limiter so a burst of decisions
// does not trip platform limits.
type Channel struct {
	*channels.BaseChannel
	config  config.WhatsAppConfig
	client  *http.Client
	limiter *rate.Limiter
	bridge  *bridge // non-nil when BridgeURL is configured
}

func New(cfg config.WhatsAppConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.BridgeURL == "" && (cfg.PhoneNumberID == "" || cfg.AccessToken == "") {
		return nil, fmt.Errorf("whatsapp: phone_number_id and BROBOT_WHATSAPP_TOKEN are required")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.SendRatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.SendRatePerMinute)/60.0), 1)
	}

	c := &Channel{
		BaseChannel: channels.NewBaseChannel("whatsapp", msgBus),
		config:      cfg,
		client:      &http.Client{Timeout: 30 * time.Second},
		limiter:     limiter,
	}
	if cfg.BridgeURL != "" {
		c.bridge = newBridge(cfg.BridgeURL, msgBus)
	}
	return c, nil
}

func (c *Channel) Start(ctx context.Context) error {
	if c.bridge != nil {
		c.bridge.start(ctx)
	}
	c.SetRunning(true)
	return nil
}

func (c *Channel) Stop(ctx context.Context) error {
	if c.bridge != nil {
		c.bridge.stop()
	}
	c.SetRunning(false)
	return nil
}

// Send delivers one reply, after the humanizing delay and rate limit.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if delay := c.sendDelay(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("whatsapp: rate wait: %w", err)
	}

	if c.bridge != nil {
		return c.bridge.send(msg)
	}
	return c.sendCloudAPI(ctx, msg)
}

// sendDelay picks a random duration in the configured window so replies do
// not land instantly after the customer's message.
func (c *Channel) sendDelay() time.Duration {
	minMS, maxMS := c.config.SendDelayMinMS, c.config.SendDelayMaxMS
	if minMS <= 0 || maxMS < minMS {
		return 0
	}
	return time.Duration(minMS+rand.Intn(maxMS-minMS+1)) * time.Millisecond
}

func (c *Channel) sendCloudAPI(ctx context.Context, msg bus.OutboundMessage) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                msg.ChatID,
		"type":              "text",
		"text":              map[string]any{"body": msg.Content},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal send: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages",
		strings.TrimRight(c.config.APIBase, "/"), c.config.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("whatsapp: create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("whatsapp: send failed: http %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// MarkRead flags an inbound message as read so the customer sees the blue
// ticks while the reply is being decided. Best effort.
func (c *Channel) MarkRead(ctx context.Context, messageID string) {
	if c.bridge != nil || messageID == "" {
		return
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	data, _ := json.Marshal(payload)

	url := fmt.Sprintf("%s/%s/messages",
		strings.TrimRight(c.config.APIBase, "/"), c.config.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Debug("mark read failed", "message_id", messageID, "error", err)
		return
	}
	resp.Body.Close()
}
