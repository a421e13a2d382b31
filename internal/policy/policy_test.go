package policy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func intPtr(n int) *int { return &n }

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		minutes *int
		want    Severity
	}{
		{nil, SeverityModerate},
		{intPtr(0), SeverityMild},
		{intPtr(3), SeverityMild},
		{intPtr(5), SeverityMild},
		{intPtr(6), SeverityModerate},
		{intPtr(8), SeverityModerate},
		{intPtr(10), SeverityModerate},
		{intPtr(11), SeveritySevere},
		{intPtr(15), SeveritySevere},
		{intPtr(16), SeveritySlotForfeited},
		{intPtr(45), SeveritySlotForfeited},
	}
	for _, tc := range cases {
		if got := Classify(tc.minutes); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.minutes, got, tc.want)
		}
	}
}

func TestIsDelayMessage(t *testing.T) {
	positives := []string{
		"voy a llegar 8 minutos tarde",
		"estoy llegando en 10",
		"me atrasé con el laburo",
		"vengo atrasado bro",
		"voy con demora",
	}
	for _, text := range positives {
		if !IsDelayMessage(text) {
			t.Errorf("IsDelayMessage(%q) = false", text)
		}
	}
	negatives := []string{
		"cuanto sale el corte?",
		"hola, todo bien?",
		"quiero agendar un turno",
	}
	for _, text := range negatives {
		if IsDelayMessage(text) {
			t.Errorf("IsDelayMessage(%q) = true", text)
		}
	}
}

func TestMessageLink(t *testing.T) {
	link := "https://agenda.example/bro"

	for _, sev := range []Severity{SeverityMild, SeverityModerate} {
		if strings.Contains(Message(sev, link), link) {
			t.Errorf("%s reply should not carry the booking link", sev)
		}
	}
	for _, sev := range []Severity{SeveritySevere, SeveritySlotForfeited} {
		if !strings.Contains(Message(sev, link), link) {
			t.Errorf("%s reply must carry the booking link", sev)
		}
	}
}

func TestExtractRegex(t *testing.T) {
	cases := []struct {
		text string
		want *int
	}{
		{"llego en 8 minutos", intPtr(8)},
		{"voy a demorar 12 min", intPtr(12)},
		{"estoy llegando 20", intPtr(20)},
		{"mi turno era a las 10:00 y llego 10:25", intPtr(25)},
		{"llego tarde, perdón", nil},
	}
	for _, tc := range cases {
		got := extractRegex(tc.text)
		switch {
		case tc.want == nil && got != nil:
			t.Errorf("extractRegex(%q) = %d, want nil", tc.text, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Errorf("extractRegex(%q) = %v, want %d", tc.text, got, *tc.want)
		}
	}
}

type fakeProvider struct {
	answer string
	err    error
	calls  int
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.answer, f.err
}

func (f *fakeProvider) Name() string { return "fake" }

func testEvaluator(p *fakeProvider) *Evaluator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEvaluator(p, logger, time.Second)
}

func TestAssessNonDelay(t *testing.T) {
	p := &fakeProvider{}
	a := testEvaluator(p).Assess(context.Background(), "cuanto sale el corte?")
	if a.IsDelay {
		t.Fatal("non-delay message assessed as delay")
	}
	if p.calls != 0 {
		t.Error("extraction ran for a non-delay message")
	}
}

func TestAssessGenerativeExtraction(t *testing.T) {
	p := &fakeProvider{answer: `{"es_demora": true, "minutos": 12}`}
	a := testEvaluator(p).Assess(context.Background(), "me atrasé, llego tipo doce minutos tarde")
	if !a.IsDelay || a.Minutes == nil || *a.Minutes != 12 || a.Severity != SeveritySevere {
		t.Fatalf("got %+v", a)
	}
}

func TestAssessExplicitMinutesSkipsProvider(t *testing.T) {
	p := &fakeProvider{err: errors.New("should not be called")}
	a := testEvaluator(p).Assess(context.Background(), "voy a llegar 8 minutos tarde")
	if !a.IsDelay || a.Minutes == nil || *a.Minutes != 8 || a.Severity != SeverityModerate {
		t.Fatalf("got %+v", a)
	}
	if p.calls != 0 {
		t.Error("explicit numeric delay should not consult the provider")
	}
}

func TestAssessProviderErrorDegradesToUnquantified(t *testing.T) {
	p := &fakeProvider{err: errors.New("overloaded")}
	a := testEvaluator(p).Assess(context.Background(), "me atrasé bastante, perdón")
	if !a.IsDelay || a.Minutes != nil || a.Severity != SeverityModerate {
		t.Fatalf("got %+v", a)
	}
}

func TestAssessUnquantifiedDelay(t *testing.T) {
	p := &fakeProvider{answer: `{"es_demora": true, "minutos": null}`}
	a := testEvaluator(p).Assess(context.Background(), "bro me atrasé, ahí voy")
	if !a.IsDelay || a.Minutes != nil || a.Severity != SeverityModerate {
		t.Fatalf("got %+v", a)
	}
}

func TestAssessFencedJSON(t *testing.T) {
	p := &fakeProvider{answer: "```json\n{\"es_demora\": true, \"minutos\": 4}\n```"}
	a := testEvaluator(p).Assess(context.Background(), "llego tarde unos minutitos")
	if a.Minutes == nil || *a.Minutes != 4 || a.Severity != SeverityMild {
		t.Fatalf("got %+v", a)
	}
}
