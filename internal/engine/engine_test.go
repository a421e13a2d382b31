package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brobarber/brobot/internal/autoflow"
	"github.com/brobarber/brobot/internal/catalog"
	"github.com/brobarber/brobot/internal/intent"
	"github.com/brobarber/brobot/internal/policy"
	"github.com/brobarber/brobot/internal/providers"
	"github.com/brobarber/brobot/internal/store"
)

const (
	testBookingLink    = "https://agenda.example/bro"
	testMapsLink       = "https://maps.example/shop"
	testHandoffContact = "+59899000111"
)

type fakeProvider struct {
	mu      sync.Mutex
	answer  string
	err     error
	calls   int
	prompts []string
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type countingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *countingNotifier) Notify(ctx context.Context, event, detail string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type testRig struct {
	engine   *Engine
	store    *store.MemoryStore
	provider *fakeProvider
	notifier *countingNotifier
}

func newTestRig(t *testing.T, provider *fakeProvider) *testRig {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewMemoryStore()
	notifier := &countingNotifier{}

	var p providers.Provider
	if provider != nil {
		p = provider
	}

	resolver := intent.NewResolver(cat, p, logger, time.Second)
	evaluator := policy.NewEvaluator(p, logger, time.Second)
	responder := autoflow.NewResponder(cat, testBookingLink, testMapsLink)

	eng := New(st, resolver, evaluator, responder, p, notifier, Options{
		BookingLink:       testBookingLink,
		MapsLink:          testMapsLink,
		HandoffContact:    testHandoffContact,
		HistoryLimit:      4,
		TokenThreshold:    500,
		GenerationTimeout: time.Second,
	}, logger)

	return &testRig{engine: eng, store: st, provider: provider, notifier: notifier}
}

func route(t *testing.T, rig *testRig, conv, text string) Outcome {
	t.Helper()
	out, err := rig.engine.Route(context.Background(), conv, text, "text")
	if err != nil {
		t.Fatalf("Route(%q): %v", text, err)
	}
	return out
}

func TestCommandTierWins(t *testing.T) {
	p := &fakeProvider{answer: "no debería llamarme"}
	rig := newTestRig(t, p)

	for _, cmd := range []string{"cancelar", "Salir", "CANCEL", "  cancelar  "} {
		out := route(t, rig, "conv", cmd)
		if out.Response != cancelledReply || out.HandledBy != "command" {
			t.Errorf("Route(%q) = %+v", cmd, out)
		}
	}

	out := route(t, rig, "conv", "ayuda")
	if out.HandledBy != "command" || !strings.Contains(out.Response, "Precios") {
		t.Errorf("ayuda = %+v", out)
	}

	if p.callCount() != 0 {
		t.Error("command tier must bypass the provider entirely")
	}
}

func TestCancelResetsConversation(t *testing.T) {
	rig := newTestRig(t, nil)

	route(t, rig, "conv", "hola")
	flags, err := rig.store.Flags(context.Background(), "conv")
	if err != nil {
		t.Fatal(err)
	}
	if flags.FunnelState != store.FunnelGreeted {
		t.Fatalf("funnel after greeting = %q", flags.FunnelState)
	}

	route(t, rig, "conv", "cancelar")
	flags, err = rig.store.Flags(context.Background(), "conv")
	if err != nil {
		t.Fatal(err)
	}
	if flags.FunnelState != store.FunnelNew || flags.Greeted {
		t.Errorf("cancel must reset flags, got %+v", flags)
	}
}

func TestCommandMustBeWholeMessage(t *testing.T) {
	rig := newTestRig(t, nil)
	out := route(t, rig, "conv", "quiero cancelar el turno")
	if out.HandledBy == "command" {
		t.Errorf("embedded control word treated as command: %+v", out)
	}
}

func TestDelayNoticeScenario(t *testing.T) {
	p := &fakeProvider{err: errors.New("must not be consulted")}
	rig := newTestRig(t, p)

	out := route(t, rig, "conv", "voy a llegar 8 minutos tarde")
	if out.HandledBy != "critical" {
		t.Fatalf("handled by %q", out.HandledBy)
	}
	if out.Response != policy.Message(policy.SeverityModerate, testBookingLink) {
		t.Errorf("response = %q", out.Response)
	}
	if p.callCount() != 0 {
		t.Error("explicit delay must not consult the generative service")
	}
}

func TestSevereDelayCarriesLink(t *testing.T) {
	rig := newTestRig(t, nil)
	out := route(t, rig, "conv", "llego en 14 minutos, perdón")
	if out.HandledBy != "critical" || !strings.Contains(out.Response, testBookingLink) {
		t.Errorf("got %+v", out)
	}
}

func TestHandoffRequest(t *testing.T) {
	rig := newTestRig(t, nil)
	out := route(t, rig, "conv", "quiero hablar con una persona por favor")
	if out.HandledBy != "critical" {
		t.Fatalf("got %+v", out)
	}
	if !strings.Contains(out.Response, testHandoffContact) {
		t.Errorf("handoff reply must carry the contact number: %q", out.Response)
	}
	if rig.notifier.count() != 1 {
		t.Errorf("handoff should notify operations once, got %d", rig.notifier.count())
	}
}

func TestHandoffReplyWithoutContact(t *testing.T) {
	got := handoffReply("")
	if strings.Contains(got, "directo") {
		t.Errorf("unconfigured contact must not leave a dangling offer: %q", got)
	}
}

func TestGreetingScenario(t *testing.T) {
	rig := newTestRig(t, nil)

	out := route(t, rig, "nuevo", "hola")
	if out.HandledBy != "onboarding" || out.Response != greetingReply {
		t.Fatalf("got %+v", out)
	}

	flags, err := rig.store.Flags(context.Background(), "nuevo")
	if err != nil {
		t.Fatal(err)
	}
	if !flags.Greeted || flags.FunnelState != store.FunnelGreeted {
		t.Errorf("flags after greeting = %+v", flags)
	}
}

func TestOnboardingFunnel(t *testing.T) {
	rig := newTestRig(t, nil)
	conv := "funnel"

	if out := route(t, rig, conv, "buenas!"); out.Response != greetingReply {
		t.Fatalf("greeting: %+v", out)
	}
	if out := route(t, rig, conv, "dale"); out.Response != proposalReply {
		t.Fatalf("proposal: %+v", out)
	}

	// Link request emits the link; a repeat is idempotent.
	for i := 0; i < 2; i++ {
		out := route(t, rig, conv, "pasame el link")
		if !strings.Contains(out.Response, testBookingLink) {
			t.Fatalf("link emission %d: %+v", i, out)
		}
		flags, _ := rig.store.Flags(context.Background(), conv)
		if flags.FunnelState != store.FunnelLinkOffered {
			t.Fatalf("state after link request %d = %q", i, flags.FunnelState)
		}
	}

	if out := route(t, rig, conv, "listo, ya agendé"); out.Response != confirmedReply {
		t.Fatalf("confirmation: %+v", out)
	}
	flags, _ := rig.store.Flags(context.Background(), conv)
	if flags.FunnelState != store.FunnelConfirmed {
		t.Fatalf("state = %q", flags.FunnelState)
	}

	// Terminal: the funnel never answers again, even to a greeting.
	out := route(t, rig, conv, "hola")
	if out.HandledBy == "onboarding" {
		t.Errorf("confirmed funnel spoke again: %+v", out)
	}
}

// Asking for the link right after the greeting skips the proposal step.
func TestGreetedLinkRequestSkipsProposal(t *testing.T) {
	rig := newTestRig(t, nil)
	conv := "directo"

	route(t, rig, conv, "hola")
	out := route(t, rig, conv, "pasame el link")
	if out.HandledBy != "onboarding" || !strings.Contains(out.Response, testBookingLink) {
		t.Fatalf("got %+v", out)
	}
	flags, _ := rig.store.Flags(context.Background(), conv)
	if flags.FunnelState != store.FunnelLinkOffered {
		t.Errorf("state = %q", flags.FunnelState)
	}
}

func TestNegationBlocksAffirmative(t *testing.T) {
	rig := newTestRig(t, nil)
	conv := "negado"

	route(t, rig, conv, "hola")
	out := route(t, rig, conv, "no, dale otro día")
	if out.HandledBy == "onboarding" {
		t.Errorf("negated reply advanced the funnel: %+v", out)
	}
	flags, _ := rig.store.Flags(context.Background(), conv)
	if flags.FunnelState != store.FunnelGreeted {
		t.Errorf("state = %q", flags.FunnelState)
	}
}

func TestCatalogTier(t *testing.T) {
	p := &fakeProvider{err: errors.New("must not run")}
	rig := newTestRig(t, p)

	out := route(t, rig, "conv", "es mas barato en otros lados")
	if out.HandledBy != "catalog" || !strings.Contains(out.Response, "corte genérico") {
		t.Fatalf("got %+v", out)
	}
	if p.callCount() != 0 {
		t.Error("rule-resolved message must not reach the provider")
	}
}

// A broad topic match pins down the subject but not the exact answer, so it
// belongs to the generative tier, where the automatic flow can still rescue
// the reply when generation fails.
func TestBroadTopicFallsToGenerativeTier(t *testing.T) {
	p := &fakeProvider{err: errors.New("provider down")}
	rig := newTestRig(t, p)

	out := route(t, rig, "conv", "tenés cera?")
	if out.HandledBy != "generative" {
		t.Fatalf("got %+v", out)
	}
	if !strings.Contains(out.Response, "marca LC") {
		t.Errorf("expected the canned product answer, got %q", out.Response)
	}
	if got := rig.notifier.count(); got != 1 {
		t.Errorf("notify_operations called %d times, want exactly 1", got)
	}
}

func TestGenerativeTier(t *testing.T) {
	p := &fakeProvider{answer: "Claro bro, te espero."}
	rig := newTestRig(t, p)

	out := route(t, rig, "conv", "puedo ir con mi perro a la barbería?")
	if out.HandledBy != "generative" || out.Response != "Claro bro, te espero." {
		t.Fatalf("got %+v", out)
	}
}

func TestGenerativeReplacesEchoedPlaceholders(t *testing.T) {
	p := &fakeProvider{answer: "De una bro, entrá acá: (link de agenda)"}
	rig := newTestRig(t, p)

	out := route(t, rig, "conv", "puedo pasar directo mañana sin avisar antes?")
	if out.HandledBy != "generative" {
		t.Fatalf("got %+v", out)
	}
	if !strings.Contains(out.Response, testBookingLink) || strings.Contains(out.Response, "(link de agenda)") {
		t.Errorf("placeholder not substituted: %q", out.Response)
	}
}

func TestGenerationFailureSuppressesAndNotifiesOnce(t *testing.T) {
	p := &fakeProvider{err: errors.New("provider down")}
	rig := newTestRig(t, p)

	out := route(t, rig, "conv", "qwzk mensaje imposible de clasificar xkcd")
	if !out.Suppressed || out.Response != "" {
		t.Fatalf("got %+v", out)
	}
	if out.HandledBy != "generative" {
		t.Errorf("handled by %q", out.HandledBy)
	}
	if got := rig.notifier.count(); got != 1 {
		t.Errorf("notify_operations called %d times, want exactly 1", got)
	}
}

type historySpy struct {
	*store.MemoryStore
	fetches int
}

func (s *historySpy) RecentMessages(ctx context.Context, conversationID string, limit int) ([]store.Message, error) {
	s.fetches++
	return s.MemoryStore.RecentMessages(ctx, conversationID, limit)
}

func TestHistoryFetchedOnlyWithContext(t *testing.T) {
	p := &fakeProvider{answer: "respuesta"}
	rig := newTestRig(t, p)
	spy := &historySpy{MemoryStore: rig.store}
	gen := rig.engine.handlers[4].(*generativeHandler)
	gen.store = spy

	// Brand-new conversation, unresolvable text: no history in the prompt.
	route(t, rig, "nuevo", "zzkqw blorp mjau xnhh wpprt kzz")
	if spy.fetches != 0 {
		t.Errorf("brand-new conversation fetched history %d times", spy.fetches)
	}

	// Greeted conversation: history is included.
	route(t, rig, "viejo", "hola")
	route(t, rig, "viejo", "zzkqw blorp mjau xnhh wpprt kzz")
	if spy.fetches == 0 {
		t.Error("greeted conversation should include history in the prompt")
	}
}

func TestDefaultTier(t *testing.T) {
	rig := newTestRig(t, nil)

	// Unknown short message, no provider configured: terminal default.
	out := route(t, rig, "nuevo", "ehh")
	if out.HandledBy != "default" {
		t.Fatalf("got %+v", out)
	}
	if !strings.HasPrefix(out.Response, defaultReplyPrefix) {
		t.Errorf("ungreeted default should carry the greeting prefix: %q", out.Response)
	}

	// Greeted conversations get the bare default.
	route(t, rig, "saludado", "hola")
	out = route(t, rig, "saludado", "ehh")
	if out.HandledBy != "default" || strings.HasPrefix(out.Response, defaultReplyPrefix) {
		t.Errorf("greeted default = %+v", out)
	}
}

type stubHandler struct {
	name string
	text string
	err  error
}

func (s *stubHandler) Name() string { return s.name }
func (s *stubHandler) Attempt(ctx context.Context, req *Request) (Result, error) {
	return Result{Text: s.text}, s.err
}

func TestShortCircuit(t *testing.T) {
	rig := newTestRig(t, nil)
	invoked := false
	rig.engine.handlers = []Handler{
		&stubHandler{name: "first", text: "gané"},
		handlerFunc("second", func(ctx context.Context, req *Request) (Result, error) {
			invoked = true
			return Result{Text: "tarde"}, nil
		}),
	}

	out := route(t, rig, "conv", "lo que sea")
	if out.Response != "gané" || out.HandledBy != "first" {
		t.Fatalf("got %+v", out)
	}
	if invoked {
		t.Error("lower tier ran after a non-empty result")
	}
}

func TestFailureIsolation(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.engine.handlers = []Handler{
		&stubHandler{name: "broken", err: errors.New("boom")},
		&stubHandler{name: "rescue", text: "respuesta válida"},
	}

	out := route(t, rig, "conv", "lo que sea")
	if out.Response != "respuesta válida" || out.HandledBy != "rescue" {
		t.Fatalf("failure in tier k blocked tier k+1: %+v", out)
	}
}

func TestTerminalFailureIsFatal(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.engine.handlers = []Handler{
		&stubHandler{name: "empty"},
		&stubHandler{name: "default", err: errors.New("boom")},
	}

	if _, err := rig.engine.Route(context.Background(), "conv", "x", "text"); err == nil {
		t.Fatal("terminal tier failure must propagate")
	}
}

type handlerFn struct {
	name string
	fn   func(ctx context.Context, req *Request) (Result, error)
}

func (h *handlerFn) Name() string { return h.name }
func (h *handlerFn) Attempt(ctx context.Context, req *Request) (Result, error) {
	return h.fn(ctx, req)
}

func handlerFunc(name string, fn func(ctx context.Context, req *Request) (Result, error)) Handler {
	return &handlerFn{name: name, fn: fn}
}
