// Package intent resolves what a message is about. Resolution is layered:
// a static keyword table first, the catalog keyword rules second, and a
// generative classifier last. Each layer only runs when the previous one
// produced nothing, and a layer failure falls through instead of aborting.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brobarber/brobot/internal/catalog"
	"github.com/brobarber/brobot/internal/fallback"
	"github.com/brobarber/brobot/internal/providers"
)

// Source identifies which layer resolved the intent.
type Source string

const (
	SourceKeyword    Source = "keyword"
	SourceCatalog    Source = "catalog"
	SourceGenerative Source = "generative"
	SourceNone       Source = "none"
)

// Resolution is the outcome of intent detection. CatalogKey is set only when
// the resolution points at a specific catalog entry.
type Resolution struct {
	Intent     string
	CatalogKey string
	Source     Source
}

// None reports whether nothing was resolved.
func (r Resolution) None() bool { return r.Intent == "" }

// generativeMinLength gates the classifier: very short messages carry too
// little signal to be worth a model call.
const generativeMinLength = 10

// Resolver runs the layered detection.
type Resolver struct {
	catalog  *catalog.Catalog
	provider providers.Provider
	logger   *slog.Logger
	timeout  time.Duration
}

func NewResolver(cat *catalog.Catalog, provider providers.Provider, logger *slog.Logger, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{catalog: cat, provider: provider, logger: logger, timeout: timeout}
}

// Resolve returns the best available resolution for text. It never returns
// an error: an unresolvable message resolves to SourceNone.
func (r *Resolver) Resolve(ctx context.Context, text string) Resolution {
	steps := []fallback.Step[Resolution]{
		{Name: "keyword", Run: func(ctx context.Context) (Resolution, error) {
			if topic := matchStatic(text); topic != "" {
				return Resolution{Intent: topic, Source: SourceKeyword}, nil
			}
			return Resolution{}, nil
		}},
		{Name: "catalog", Run: func(ctx context.Context) (Resolution, error) {
			if topic, key, ok := r.catalog.Match(text); ok {
				return Resolution{Intent: topic, CatalogKey: key, Source: SourceCatalog}, nil
			}
			return Resolution{}, nil
		}},
		{Name: "generative", Run: r.classifyStep(text)},
	}

	res, ok := fallback.First(ctx, r.logger, steps)
	if !ok {
		return Resolution{Source: SourceNone}
	}
	return res.Value
}

func (r *Resolver) classifyStep(text string) func(ctx context.Context) (Resolution, error) {
	return func(ctx context.Context) (Resolution, error) {
		if r.provider == nil || len(strings.TrimSpace(text)) <= generativeMinLength {
			return Resolution{}, nil
		}
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		answer, err := r.provider.Generate(ctx, r.classifyPrompt(text))
		if err != nil {
			return Resolution{}, fmt.Errorf("intent: classify: %w", err)
		}
		return r.parseClassification(answer), nil
	}
}

func (r *Resolver) classifyPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Clasificá el mensaje de un cliente de una barbería en una de estas categorías:\n")
	for _, key := range r.catalog.Keys() {
		b.WriteString("- " + key + "\n")
	}
	b.WriteString("- ninguna\n\n")
	b.WriteString("Respondé únicamente con la categoría, sin explicación.\n\nMensaje: ")
	b.WriteString(text)
	return b.String()
}

// parseClassification maps the model's answer back onto a catalog entry.
// Anything that is not a known entry resolves to nothing.
func (r *Resolver) parseClassification(answer string) Resolution {
	answer = strings.ToLower(strings.TrimSpace(answer))
	answer = strings.Trim(answer, "\"'`.")
	if answer == "" || answer == "ninguna" {
		return Resolution{}
	}

	topic, key, ok := strings.Cut(answer, ".")
	if !ok {
		return Resolution{}
	}
	if _, exists := r.catalog.Response(topic, key); !exists {
		r.logger.Debug("classifier answered with unknown category", "answer", answer)
		return Resolution{}
	}
	return Resolution{Intent: topic, CatalogKey: key, Source: SourceGenerative}
}
