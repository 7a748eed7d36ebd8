// Package slug derives URL-safe slugs and resolves collisions by probing
// base, base-1, base-2, ... until a free candidate is found.
package slug

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxAttempts caps the collision probe.
const MaxAttempts = 10000

// ErrExhausted is returned when every probed candidate is taken.
var ErrExhausted = errors.New("slug: no free slug within probe limit")

// TakenFunc reports whether a candidate slug is already used.
type TakenFunc func(ctx context.Context, candidate string) (bool, error)

var asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII
})))

// Make lowercases s, folds it to ASCII, drops everything but letters,
// digits, underscores, hyphens and spaces, and joins words with hyphens.
func Make(s string) string {
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}
	return strings.Trim(b.String(), "-_")
}

// Unique returns the first candidate in base, base-1, base-2, ... that taken
// reports as free. Candidates never exceed maxLen characters; the base is
// shortened to make room for the suffix. An empty base is replaced by
// fallback.
func Unique(ctx context.Context, base, fallback string, maxLen int, taken TakenFunc) (string, error) {
	if base == "" {
		base = fallback
	}
	for i := 0; i < MaxAttempts; i++ {
		candidate := withSuffix(base, i, maxLen)
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("probe slug %q: %w", candidate, err)
		}
		if !used {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: base %q", ErrExhausted, base)
}

func withSuffix(base string, n, maxLen int) string {
	suffix := ""
	if n > 0 {
		suffix = "-" + strconv.Itoa(n)
	}
	if maxLen > 0 && len(base)+len(suffix) > maxLen {
		keep := maxLen - len(suffix)
		if keep < 0 {
			keep = 0
		}
		base = strings.TrimRight(base[:keep], "-")
	}
	return base + suffix
}
