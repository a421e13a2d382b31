// Package catalog holds the curated response catalog and the barbershop
// knowledge base. The catalog is a static keyed mapping from intent and key
// to a response template; templates may carry link placeholders substituted
// with live links at send time.
//
// A missing or malformed catalog is a fatal configuration error: the engine
// has no policy for operating without its baseline responses.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/titanous/json5"
)

//go:embed catalog.json5
var embeddedCatalog []byte

// KeywordRule maps a set of phrases to a catalog entry.
type KeywordRule struct {
	Phrases []string `json:"phrases"`
	Intent  string   `json:"intent"`
	Key     string   `json:"key"`
}

type catalogFile struct {
	Responses map[string]map[string]string `json:"responses"`
	Keywords  []KeywordRule                `json:"keywords"`
}

// Catalog is the loaded curated response set. Safe for concurrent use;
// Reload swaps the content atomically.
type Catalog struct {
	mu        sync.RWMutex
	path      string // empty = embedded default
	responses map[string]map[string]string
	keywords  []KeywordRule
}

// Load reads the catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the catalog source. On error the previous content is kept.
func (c *Catalog) Reload() error {
	data := embeddedCatalog
	if c.path != "" {
		b, err := os.ReadFile(c.path)
		if err != nil {
			return fmt.Errorf("catalog: read %s: %w", c.path, err)
		}
		data = b
	}

	var f catalogFile
	if err := json5.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("catalog: parse: %w", err)
	}
	if len(f.Responses) == 0 {
		return fmt.Errorf("catalog: no responses defined")
	}

	c.mu.Lock()
	c.responses = f.Responses
	c.keywords = f.Keywords
	c.mu.Unlock()
	return nil
}

// Response returns the template for an intent/key pair.
func (c *Catalog) Response(intent, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries, ok := c.responses[intent]
	if !ok {
		return "", false
	}
	tmpl, ok := entries[key]
	return tmpl, ok
}

// Match scans the keyword rules for a phrase contained in text and returns
// the catalog entry it designates. First matching rule wins.
func (c *Catalog) Match(text string) (intent, key string, ok bool) {
	if text == "" {
		return "", "", false
	}
	lower := strings.ToLower(strings.TrimSpace(text))

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, rule := range c.keywords {
		for _, phrase := range rule.Phrases {
			if strings.Contains(lower, phrase) {
				return rule.Intent, rule.Key, true
			}
		}
	}
	return "", "", false
}

// Keys returns every "intent.key" pair, used to build the generative
// classification prompt.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var keys []string
	for intent, entries := range c.responses {
		for key := range entries {
			keys = append(keys, intent+"."+key)
		}
	}
	return keys
}

// linkPhrases are template fragments that should be followed by the booking
// link when it is substituted in.
var linkPhrases = []string{
	"acá te dejo el link:",
	"Acá te dejo el link:",
	"Acá tenés el link:",
	"acá tenés el link:",
	"A continuación te dejo el link:",
}

// ReplaceLinks substitutes link placeholders in a response template with the
// live booking and maps links.
func ReplaceLinks(text, bookingLink, mapsLink string) string {
	if bookingLink != "" {
		text = strings.ReplaceAll(text, "(link de agenda)", bookingLink)
		text = strings.ReplaceAll(text, "(link de la agenda)", bookingLink)
		for _, phrase := range linkPhrases {
			text = strings.ReplaceAll(text, phrase, phrase+"\n"+bookingLink)
		}
	}
	if mapsLink != "" {
		text = strings.ReplaceAll(text, "(link de Google Maps)", mapsLink)
	}
	return text
}

// MentionsBooking reports whether the text is about bookings or scheduling,
// in which case replies must always carry the booking link.
func MentionsBooking(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "turno") ||
		strings.Contains(lower, "agenda") ||
		strings.Contains(lower, "reserva")
}

// ForceBookingLink appends the booking link when the reply lacks it.
func ForceBookingLink(reply, bookingLink string) string {
	if bookingLink == "" || strings.Contains(reply, bookingLink) {
		return reply
	}
	return reply + "\n\n" + bookingLink
}
