package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/bryan-buckman/techpulse/internal/database"
	"github.com/bryan-buckman/techpulse/internal/model"
)

type fakeLookup struct {
	categories map[string]*model.Category
	err        error
	calls      []string
}

func (f *fakeLookup) GetCategoryByName(_ context.Context, name string) (*model.Category, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.categories[name]; ok {
		return c, nil
	}
	return nil, database.ErrNotFound
}

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		want      string
		wantScore int
	}{
		{"ai keywords", "Neural network advances in deep learning", ArtificialIntelligence, 2},
		{"startups", "Startup lands funding", Startups, 2},
		{"repeats count once", "startup startup STARTUP", Startups, 1},
		{"tie goes to declaration order", "security and revenue", Security, 1},
		{"higher score wins over order", "revenue, earnings and a breach", Business, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Score(tt.text)
			if !ok {
				t.Fatalf("Score(%q) matched nothing", tt.text)
			}
			if m.Category != tt.want || m.Score != tt.wantScore {
				t.Fatalf("Score(%q) = %+v, want %s/%d", tt.text, m, tt.want, tt.wantScore)
			}
		})
	}

	if m, ok := Score("a quiet afternoon walk"); ok {
		t.Fatalf("unexpected match %+v", m)
	}
}

func TestTaxonomyIsCopied(t *testing.T) {
	tx := Taxonomy()
	if len(tx) != 8 {
		t.Fatalf("taxonomy has %d topics, want 8", len(tx))
	}
	tx[0].Keywords[0] = "mutated"
	if taxonomy[0].Keywords[0] == "mutated" {
		t.Fatal("Taxonomy leaked the package table")
	}
}

func TestClassify(t *testing.T) {
	ai := &model.Category{ID: 1, Name: ArtificialIntelligence}
	lookup := &fakeLookup{categories: map[string]*model.Category{ArtificialIntelligence: ai}}
	c := New(lookup)
	ctx := context.Background()

	got, err := c.Classify(ctx, "Neural network", "deep learning everywhere", "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != ai {
		t.Fatalf("got %+v, want AI category", got)
	}

	got, err = c.Classify(ctx, "Startup lands funding", "", "")
	if err != nil || got != nil {
		t.Fatalf("missing category row: got %+v, %v; want nil, nil", got, err)
	}

	lookup.calls = nil
	got, err = c.Classify(ctx, "nothing to see", "", "")
	if err != nil || got != nil {
		t.Fatalf("no match: got %+v, %v", got, err)
	}
	if len(lookup.calls) != 0 {
		t.Fatalf("lookup called for unmatched text: %v", lookup.calls)
	}
}

func TestClassifyLookupError(t *testing.T) {
	boom := errors.New("db down")
	c := New(&fakeLookup{err: boom})
	if _, err := c.Classify(context.Background(), "deep learning", "", ""); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped lookup error", err)
	}
}
