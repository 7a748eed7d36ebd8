// Package classify assigns articles to categories by keyword scoring.
package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bryan-buckman/techpulse/internal/database"
	"github.com/bryan-buckman/techpulse/internal/model"
)

// CategoryLookup finds a stored category by exact name. Unknown names yield
// database.ErrNotFound.
type CategoryLookup interface {
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
}

// Match is the outcome of scoring text against the taxonomy.
type Match struct {
	Category string
	Score    int
}

// Score counts, per topic, how many distinct keywords occur in text and
// returns the best topic. Ties go to the topic declared first. ok is false
// when no keyword matched.
func Score(text string) (m Match, ok bool) {
	text = strings.ToLower(text)
	for _, topic := range taxonomy {
		score := 0
		for _, kw := range topic.Keywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > m.Score {
			m = Match{Category: topic.Name, Score: score}
		}
	}
	return m, m.Score > 0
}

// Classifier resolves the best-scoring topic to a stored category.
type Classifier struct {
	lookup CategoryLookup
}

// New creates a classifier backed by lookup.
func New(lookup CategoryLookup) *Classifier {
	return &Classifier{lookup: lookup}
}

// Classify returns the category for an article's text, or nil when nothing
// matched or the winning topic has no stored category.
func (c *Classifier) Classify(ctx context.Context, title, content, summary string) (*model.Category, error) {
	m, ok := Score(title + " " + content + " " + summary)
	if !ok {
		return nil, nil
	}
	cat, err := c.lookup.GetCategoryByName(ctx, m.Category)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup category %q: %w", m.Category, err)
	}
	return cat, nil
}
