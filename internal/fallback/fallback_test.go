package fallback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFirstWins(t *testing.T) {
	var secondRan bool
	steps := []Step[string]{
		{Name: "a", Run: func(ctx context.Context) (string, error) { return "hit", nil }},
		{Name: "b", Run: func(ctx context.Context) (string, error) { secondRan = true; return "late", nil }},
	}
	res, ok := First(context.Background(), discard(), steps)
	if !ok || res.Value != "hit" || res.Step != "a" {
		t.Fatalf("got %+v ok=%v", res, ok)
	}
	if secondRan {
		t.Error("later step ran after a win")
	}
}

func TestErrorFallsThrough(t *testing.T) {
	steps := []Step[string]{
		{Name: "a", Run: func(ctx context.Context) (string, error) { return "", errors.New("boom") }},
		{Name: "b", Run: func(ctx context.Context) (string, error) { return "", nil }},
		{Name: "c", Run: func(ctx context.Context) (string, error) { return "rescued", nil }},
	}
	res, ok := First(context.Background(), discard(), steps)
	if !ok || res.Value != "rescued" || res.Step != "c" {
		t.Fatalf("got %+v ok=%v", res, ok)
	}
}

func TestAllEmpty(t *testing.T) {
	steps := []Step[string]{
		{Name: "a", Run: func(ctx context.Context) (string, error) { return "", nil }},
	}
	if _, ok := First(context.Background(), discard(), steps); ok {
		t.Fatal("expected no result")
	}
}

func TestCanceledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	steps := []Step[string]{
		{Name: "a", Run: func(ctx context.Context) (string, error) {
			t.Error("step ran on canceled context")
			return "x", nil
		}},
	}
	if _, ok := First(ctx, discard(), steps); ok {
		t.Fatal("expected no result on canceled context")
	}
}
