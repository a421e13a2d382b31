// Package gateway receives WhatsApp Cloud API webhooks, normalizes them
// into inbound messages, and feeds the bus. Audio is transcribed here so
// the engine only ever sees text.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brobarber/brobot/internal/bus"
	"github.com/brobarber/brobot/internal/channels"
	"github.com/brobarber/brobot/internal/config"
	"github.com/brobarber/brobot/internal/providers"
)

// audioFailedReply is sent when a voice note cannot be turned into text.
// The engine never sees the message.
const audioFailedReply = "No pude escuchar el audio, bro. ¿Me lo escribís?"

// WhatsAppClient is the delivery channel surface the gateway needs: media
// download for voice notes and read receipts.
type WhatsAppClient interface {
	FetchMedia(ctx context.Context, mediaID string) (data []byte, mimeType string, err error)
	MarkRead(ctx context.Context, messageID string)
}

// Server is the inbound webhook HTTP server.
type Server struct {
	cfg         config.GatewayConfig
	opsNumber   string
	bus         *bus.MessageBus
	limiter     *channels.WebhookRateLimiter
	whatsapp    WhatsAppClient
	transcriber providers.Transcriber
	logger      *slog.Logger
	httpServer  *http.Server
}

func NewServer(
	cfg config.GatewayConfig,
	opsNumber string,
	msgBus *bus.MessageBus,
	wa WhatsAppClient,
	transcriber providers.Transcriber,
	logger *slog.Logger,
) *Server {
	return &Server{
		cfg:         cfg,
		opsNumber:   opsNumber,
		bus:         msgBus,
		limiter:     channels.NewWebhookRateLimiter(cfg.RateLimitRPM),
		whatsapp:    wa,
		transcriber: transcriber,
		logger:      logger,
	}
}

// Mux builds the route table.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /webhook", s.handleVerify)
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("gateway listening", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway: serve: %w", err)
	}
	return nil
}

// handleVerify answers the Cloud API subscription handshake.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != s.cfg.VerifyToken {
		s.logger.Warn("webhook verification rejected", "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	w.Write([]byte(q.Get("hub.challenge")))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleWebhook acknowledges immediately and processes messages in the
// background; the Cloud API retries deliveries that do not 200 fast.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	for _, msg := range payload.messages() {
		if !s.limiter.Allow(msg.From) {
			s.logger.Warn("sender rate limited", "sender", msg.From)
			continue
		}
		go s.process(context.Background(), msg)
	}
}

func (s *Server) process(ctx context.Context, msg inboundEvent) {
	if s.whatsapp != nil {
		s.whatsapp.MarkRead(ctx, msg.ID)
	}

	content := msg.Text
	kind := msg.Kind
	if kind == "audio" {
		text, err := s.transcribe(ctx, msg.MediaID)
		if err != nil {
			s.logger.Warn("audio transcription failed",
				"sender", msg.From, "error", err)
			s.bus.PublishOutbound(bus.OutboundMessage{
				Channel: "whatsapp",
				ChatID:  msg.From,
				Content: audioFailedReply,
			})
			return
		}
		content = text
	}
	if strings.TrimSpace(content) == "" {
		return
	}

	// Operators can answer a customer directly from the shop's own chat:
	// "#reply <number> <text>" bypasses the engine entirely.
	if s.opsNumber != "" && msg.From == s.opsNumber {
		if to, text, ok := parseOperatorReply(content); ok {
			s.bus.PublishOutbound(bus.OutboundMessage{
				Channel: "whatsapp",
				ChatID:  to,
				Content: text,
			})
			return
		}
	}

	s.bus.PublishInbound(bus.InboundMessage{
		Channel:   "whatsapp",
		SenderID:  msg.From,
		MessageID: msg.ID,
		Content:   content,
		Kind:      kind,
	})
}

func (s *Server) transcribe(ctx context.Context, mediaID string) (string, error) {
	if s.whatsapp == nil || s.transcriber == nil || mediaID == "" {
		return "", fmt.Errorf("gateway: audio support not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	data, mimeType, err := s.whatsapp.FetchMedia(ctx, mediaID)
	if err != nil {
		return "", fmt.Errorf("gateway: fetch audio: %w", err)
	}
	text, err := s.transcriber.Transcribe(ctx, mimeType, data)
	if err != nil {
		return "", fmt.Errorf("gateway: transcribe: %w", err)
	}
	return text, nil
}

// parseOperatorReply splits "#reply 5989xxxxxxx texto de la respuesta".
func parseOperatorReply(content string) (to, text string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "#reply ") {
		return "", "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(content, "#reply "))
	to, text, found := strings.Cut(rest, " ")
	if !found || to == "" || strings.TrimSpace(text) == "" {
		return "", "", false
	}
	return to, strings.TrimSpace(text), true
}
