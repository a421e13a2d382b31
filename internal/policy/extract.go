package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brobarber/brobot/internal/providers"
)

// Assessment is the outcome of evaluating a lateness notice.
type Assessment struct {
	IsDelay  bool
	Minutes  *int // nil when the customer did not quantify the delay
	Severity Severity
}

// Evaluator assesses lateness notices. A regex pass runs first so explicit
// numeric delays resolve without any external call; a generative extractor
// backs it up for the many phrasings that spell numbers out.
type Evaluator struct {
	provider providers.Provider
	logger   *slog.Logger
	timeout  time.Duration
}

func NewEvaluator(provider providers.Provider, logger *slog.Logger, timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Evaluator{provider: provider, logger: logger, timeout: timeout}
}

// Assess extracts the delay estimate from text and classifies it. It never
// returns an error: extraction failures degrade to an unquantified delay.
func (e *Evaluator) Assess(ctx context.Context, text string) Assessment {
	if !IsDelayMessage(text) {
		return Assessment{}
	}

	minutes := extractRegex(text)
	if minutes == nil {
		minutes = e.extractGenerative(ctx, text)
	}
	return Assessment{IsDelay: true, Minutes: minutes, Severity: Classify(minutes)}
}

type delayExtraction struct {
	EsDemora bool `json:"es_demora"`
	Minutos  *int `json:"minutos"`
}

func (e *Evaluator) extractGenerative(ctx context.Context, text string) *int {
	if e.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Un cliente de una barbería avisa que llega tarde. Extraé cuántos minutos de atraso declara.\n"+
			"Respondé únicamente con JSON: {\"es_demora\": true|false, \"minutos\": número o null}.\n\n"+
			"Mensaje: %s", text)

	answer, err := e.provider.Generate(ctx, prompt)
	if err != nil {
		e.logger.Warn("delay extraction failed, treating delay as unquantified", "error", err)
		return nil
	}

	var out delayExtraction
	if err := json.Unmarshal([]byte(stripCodeFence(answer)), &out); err != nil {
		e.logger.Debug("delay extraction returned non-JSON", "answer", answer)
		return nil
	}
	if !out.EsDemora || out.Minutos == nil || *out.Minutos < 0 {
		return nil
	}
	return out.Minutos
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var (
	minutesRe  = regexp.MustCompile(`(\d+)\s*(?:min|minutos|minuto)`)
	demoraRe   = regexp.MustCompile(`demor(?:o|ar|ando)\s*(\d+)`)
	llegandoRe = regexp.MustCompile(`llegando\s*(\d+)`)
	clockRe    = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

// extractRegex scans for explicit minute counts or a pair of clock times
// whose difference gives the delay.
func extractRegex(text string) *int {
	lower := strings.ToLower(text)

	for _, re := range []*regexp.Regexp{minutesRe, demoraRe, llegandoRe} {
		if m := re.FindStringSubmatch(lower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 {
				return &n
			}
		}
	}

	// "mi turno era a las 10:00 y llego 10:20": two clock times, take
	// the difference.
	if times := clockRe.FindAllStringSubmatch(lower, -1); len(times) >= 2 {
		first := clockMinutes(times[0])
		second := clockMinutes(times[1])
		if diff := second - first; diff > 0 {
			return &diff
		}
	}
	return nil
}

func clockMinutes(m []string) int {
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	return h*60 + min
}
