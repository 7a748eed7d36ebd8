package ingest

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHostOf(t *testing.T) {
	cases := map[string]string{
		"https://example.com/feed.xml":       "example.com",
		"http://example.com:8080/rss":        "example.com:8080",
		"not a url":                          "not a url",
		"https://sub.example.com/a?b=c#frag": "sub.example.com",
	}
	for in, want := range cases {
		if got := hostOf(in); got != want {
			t.Errorf("hostOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHostLimiterCapsConcurrency(t *testing.T) {
	hl := newHostLimiter(0)
	ctx := context.Background()
	for i := 0; i < MaxConcurrencyPerHost; i++ {
		if err := hl.acquire(ctx, "a.example"); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if err := hl.acquire(ctx, "b.example"); err != nil {
		t.Fatalf("other host blocked: %v", err)
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := hl.acquire(short, "a.example"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	hl.release("a.example")
	if err := hl.acquire(ctx, "a.example"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestHostLimiterSpacesRequests(t *testing.T) {
	hl := newHostLimiter(30 * time.Millisecond)
	ctx := context.Background()
	if err := hl.acquire(ctx, "a.example"); err != nil {
		t.Fatal(err)
	}
	hl.release("a.example")

	start := time.Now()
	if err := hl.acquire(ctx, "a.example"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("second request not delayed: %v", elapsed)
	}
}
