// Package budget estimates prompt cost and picks the generation strategy.
// The decision reorders attempts, it never forbids generation: a cheap
// automatic pass goes first on big prompts, and generation still runs if
// that pass produces nothing.
package budget

import "unicode/utf8"

// Strategy orders the generation attempts for one message.
type Strategy string

const (
	// DirectGenerate calls the generative service first.
	DirectGenerate Strategy = "direct_generate"
	// AutomaticFirst tries the rule-based automatic flow before generating.
	AutomaticFirst Strategy = "automatic_first"
)

// DefaultTokenThreshold is the prompt size at which the automatic flow is
// tried first.
const DefaultTokenThreshold = 500

// Decision is the per-message budget outcome. Recomputed every message,
// never cached.
type Decision struct {
	EstimatedTokens int
	Strategy        Strategy
}

// EstimateTokens approximates token count as one token per four characters.
// Good enough for a threshold check; an exact tokenizer is not worth the
// dependency here.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// Decide picks the strategy for a prompt of estimatedTokens. The threshold
// is inclusive: a prompt at exactly the threshold still generates directly.
func Decide(estimatedTokens, threshold int) Decision {
	if threshold <= 0 {
		threshold = DefaultTokenThreshold
	}
	if estimatedTokens <= threshold {
		return Decision{EstimatedTokens: estimatedTokens, Strategy: DirectGenerate}
	}
	return Decision{EstimatedTokens: estimatedTokens, Strategy: AutomaticFirst}
}
