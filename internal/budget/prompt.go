package budget

import (
	"regexp"
	"strings"

	"github.com/brobarber/brobot/internal/store"
)

// Prompt assembles a generation prompt from named sections so each caller
// pays only for the context it needs.
type Prompt struct {
	sections []string
}

// Add appends a section; empty sections are dropped.
func (p *Prompt) Add(section string) *Prompt {
	if strings.TrimSpace(section) != "" {
		p.sections = append(p.sections, strings.TrimSpace(section))
	}
	return p
}

func (p *Prompt) String() string {
	return strings.Join(p.sections, "\n\n")
}

// EstimatedTokens estimates the assembled prompt's cost.
func (p *Prompt) EstimatedTokens() int {
	return EstimateTokens(p.String())
}

// Persona is the fixed voice every generated reply is written in.
const Persona = "Sos el asistente de WhatsApp de una barbería de Montevideo. " +
	"Hablás en rioplatense, cercano y directo, tratás al cliente de \"bro\". " +
	"Respondé corto, máximo tres oraciones, sin inventar precios ni horarios."

var numberRe = regexp.MustCompile(`\d+(?:[.,:]\d+)?`)

// historyLineMax bounds compressed history lines.
const historyLineMax = 80

// CompressHistory renders recent messages as compact prompt lines. Older
// messages are truncated but any numbers they carry (times, prices, minutes)
// are preserved; the newest user message goes in verbatim since it is what
// the model must answer.
func CompressHistory(msgs []store.Message) string {
	if len(msgs) == 0 {
		return ""
	}

	lastUser := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			lastUser = i
			break
		}
	}

	var b strings.Builder
	for i, m := range msgs {
		role := "cliente"
		if m.Role == "assistant" {
			role = "asistente"
		}
		content := strings.TrimSpace(m.Content)
		if i != lastUser {
			content = compressLine(content)
		}
		if content == "" {
			continue
		}
		b.WriteString(role + ": " + content + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func compressLine(content string) string {
	runes := []rune(content)
	if len(runes) <= historyLineMax {
		return content
	}
	head := strings.TrimSpace(string(runes[:historyLineMax]))

	// Keep numbers that truncation would drop: a lost "10:30" or "15
	// minutos" changes what the model believes happened.
	tail := string(runes[historyLineMax:])
	if nums := numberRe.FindAllString(tail, -1); len(nums) > 0 {
		head += " (" + strings.Join(nums, " ") + ")"
	}
	return head + "…"
}
