package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brobarber/brobot/internal/bus"
	"github.com/brobarber/brobot/internal/config"
)

type fakeWhatsApp struct {
	media     []byte
	mimeType  string
	readCalls int
}

func (f *fakeWhatsApp) FetchMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	return f.media, f.mimeType, nil
}

func (f *fakeWhatsApp) MarkRead(ctx context.Context, messageID string) {
	f.readCalls++
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, mimeType string, audio []byte) (string, error) {
	return f.text, f.err
}

func newTestServer(t *testing.T, opsNumber string) (*Server, *bus.MessageBus) {
	t.Helper()
	msgBus := bus.New()
	cfg := config.GatewayConfig{VerifyToken: "secreto", RateLimitRPM: 30}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(cfg, opsNumber, msgBus,
		&fakeWhatsApp{media: []byte("ogg"), mimeType: "audio/ogg"},
		&fakeTranscriber{text: "quiero un turno"},
		logger)
	return srv, msgBus
}

func awaitInbound(t *testing.T, msgBus *bus.MessageBus) bus.InboundMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, ok := msgBus.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("no inbound message published")
	}
	return msg
}

func TestVerifyHandshake(t *testing.T) {
	srv, _ := newTestServer(t, "")
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/webhook?hub.mode=subscribe&hub.verify_token=secreto&hub.challenge=12345")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "12345" {
		t.Errorf("challenge echo = %q, want 12345", body)
	}
}

func TestVerifyRejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(t, "")
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

const textPayload = `{
	"entry": [{"changes": [{"value": {"messages": [
		{"from": "59891234567", "id": "wamid.1", "type": "text",
		 "text": {"body": "hola, cuanto sale el corte?"}}
	]}}]}]
}`

func TestWebhookPublishesText(t *testing.T) {
	srv, msgBus := newTestServer(t, "")
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(textPayload))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	msg := awaitInbound(t, msgBus)
	if msg.SenderID != "59891234567" {
		t.Errorf("sender = %q", msg.SenderID)
	}
	if msg.Content != "hola, cuanto sale el corte?" {
		t.Errorf("content = %q", msg.Content)
	}
	if msg.Kind != "text" {
		t.Errorf("kind = %q", msg.Kind)
	}
}

func TestWebhookTranscribesAudio(t *testing.T) {
	srv, msgBus := newTestServer(t, "")
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	payload := `{
		"entry": [{"changes": [{"value": {"messages": [
			{"from": "59891234567", "id": "wamid.2", "type": "audio",
			 "audio": {"id": "media-1", "mime_type": "audio/ogg"}}
		]}}]}]
	}`
	resp, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	msg := awaitInbound(t, msgBus)
	if msg.Content != "quiero un turno" {
		t.Errorf("content = %q, want transcription", msg.Content)
	}
	if msg.Kind != "audio" {
		t.Errorf("kind = %q, want audio", msg.Kind)
	}
}

func TestWebhookTranscriptionFailureSendsPoliteReply(t *testing.T) {
	srv, msgBus := newTestServer(t, "")
	srv.transcriber = &fakeTranscriber{err: errors.New("model unavailable")}
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	payload := `{
		"entry": [{"changes": [{"value": {"messages": [
			{"from": "59891234567", "id": "wamid.2", "type": "audio",
			 "audio": {"id": "media-1", "mime_type": "audio/ogg"}}
		]}}]}]
	}`
	resp, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, ok := msgBus.SubscribeOutbound(ctx)
	if !ok {
		t.Fatal("no polite reply published")
	}
	if out.ChatID != "59891234567" || !strings.Contains(out.Content, "audio") {
		t.Errorf("polite reply = %+v", out)
	}

	inCtx, inCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer inCancel()
	if _, ok := msgBus.ConsumeInbound(inCtx); ok {
		t.Fatal("failed transcription must not reach the engine")
	}
}

func TestWebhookInteractiveReply(t *testing.T) {
	srv, msgBus := newTestServer(t, "")
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	payload := `{
		"entry": [{"changes": [{"value": {"messages": [
			{"from": "59891234567", "id": "wamid.3", "type": "interactive",
			 "interactive": {"type": "button_reply", "button_reply": {"title": "Ver precios"}}}
		]}}]}]
	}`
	resp, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	msg := awaitInbound(t, msgBus)
	if msg.Content != "Ver precios" {
		t.Errorf("content = %q", msg.Content)
	}
}

func TestWebhookIgnoresStatusCallbacks(t *testing.T) {
	srv, msgBus := newTestServer(t, "")
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	payload := `{"entry": [{"changes": [{"value": {"statuses": [{"id": "wamid.4", "status": "delivered"}]}}]}]}`
	resp, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, ok := msgBus.ConsumeInbound(ctx); ok {
		t.Fatal("status callback should not publish a message")
	}
}

func TestOperatorReplyPassthrough(t *testing.T) {
	srv, msgBus := newTestServer(t, "59899999999")
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	payload := `{
		"entry": [{"changes": [{"value": {"messages": [
			{"from": "59899999999", "id": "wamid.5", "type": "text",
			 "text": {"body": "#reply 59891234567 dale, te espero a las 5"}}
		]}}]}]
	}`
	resp, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, ok := msgBus.SubscribeOutbound(ctx)
	if !ok {
		t.Fatal("no outbound message published")
	}
	if out.ChatID != "59891234567" {
		t.Errorf("chat id = %q", out.ChatID)
	}
	if out.Content != "dale, te espero a las 5" {
		t.Errorf("content = %q", out.Content)
	}

	inCtx, inCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer inCancel()
	if _, ok := msgBus.ConsumeInbound(inCtx); ok {
		t.Fatal("operator reply must not reach the engine")
	}
}

func TestParseOperatorReply(t *testing.T) {
	tests := []struct {
		in       string
		to, text string
		ok       bool
	}{
		{"#reply 598912 hola", "598912", "hola", true},
		{"#reply 598912   hola bro  ", "598912", "hola bro", true},
		{"#reply 598912", "", "", false},
		{"hola", "", "", false},
		{"#reply  ", "", "", false},
	}
	for _, tt := range tests {
		to, text, ok := parseOperatorReply(tt.in)
		if to != tt.to || text != tt.text || ok != tt.ok {
			t.Errorf("parseOperatorReply(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.in, to, text, ok, tt.to, tt.text, tt.ok)
		}
	}
}

func TestWebhookRejectsBadJSON(t *testing.T) {
	srv, _ := newTestServer(t, "")
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/webhook", "application/json", strings.NewReader("{nope"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
