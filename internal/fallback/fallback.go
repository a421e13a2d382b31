// Package fallback runs an ordered chain of attempts where the first usable
// result wins and a failed attempt falls through to the next one.
package fallback

import (
	"context"
	"log/slog"
)

// Step is one attempt in a chain. Empty result with nil error means the step
// had nothing to contribute.
type Step[T comparable] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Result carries the winning value and which step produced it.
type Result[T comparable] struct {
	Value T
	Step  string
}

// First runs steps in order and returns the first non-zero result. Step
// errors are logged and treated as "no result"; they never abort the chain.
func First[T comparable](ctx context.Context, logger *slog.Logger, steps []Step[T]) (Result[T], bool) {
	var zero T
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return Result[T]{}, false
		}
		value, err := step.Run(ctx)
		if err != nil {
			logger.Warn("fallback step failed", "step", step.Name, "error", err)
			continue
		}
		if value != zero {
			return Result[T]{Value: value, Step: step.Name}, true
		}
	}
	return Result[T]{}, false
}
