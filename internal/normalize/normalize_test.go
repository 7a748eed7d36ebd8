package normalize

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bryan-buckman/techpulse/internal/model"
)

var testSource = model.Source{ID: 7, Name: "Example", URL: "https://example.com/feed.xml", Type: model.SourceRSS}

func entry(link string) RawEntry {
	return RawEntry{Link: String(link)}
}

func TestNormalizeTitle(t *testing.T) {
	n := New(nil)

	t.Run("missing", func(t *testing.T) {
		a, err := n.Normalize(entry("https://example.com/a"), testSource)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if a.Title != UntitledTitle {
			t.Fatalf("title = %q, want %q", a.Title, UntitledTitle)
		}
	})

	t.Run("blank", func(t *testing.T) {
		e := entry("https://example.com/a")
		e.Title = String("   \t ")
		a, _ := n.Normalize(e, testSource)
		if a.Title != UntitledTitle {
			t.Fatalf("title = %q, want %q", a.Title, UntitledTitle)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		for _, unit := range []string{"x", "é"} {
			e := entry("https://example.com/a")
			e.Title = String(strings.Repeat(unit, model.TitleMaxLength+37))
			a, _ := n.Normalize(e, testSource)
			if got := utf8.RuneCountInString(a.Title); got != model.TitleMaxLength {
				t.Fatalf("title length = %d, want %d", got, model.TitleMaxLength)
			}
		}
	})

	t.Run("trimmed", func(t *testing.T) {
		e := entry("https://example.com/a")
		e.Title = String("  Hello  ")
		a, _ := n.Normalize(e, testSource)
		if a.Title != "Hello" {
			t.Fatalf("title = %q", a.Title)
		}
	})
}

func TestNormalizeUnusableEntry(t *testing.T) {
	n := New(nil)
	for _, e := range []RawEntry{{}, entry(""), entry("   ")} {
		if _, err := n.Normalize(e, testSource); !errors.Is(err, ErrUnusableEntry) {
			t.Fatalf("err = %v, want ErrUnusableEntry", err)
		}
	}
}

func TestNormalizeContentAndSummary(t *testing.T) {
	n := New(nil)

	e := entry(" https://example.com/a ")
	e.Content = []ContentBlock{{Value: "  first\n\n   block\t here "}}
	e.Description = String("description")
	a, _ := n.Normalize(e, testSource)
	if a.URL != "https://example.com/a" {
		t.Fatalf("url = %q", a.URL)
	}
	if a.Content != "first block here" {
		t.Fatalf("content = %q", a.Content)
	}
	if a.Summary != "first block here" {
		t.Fatalf("derived summary = %q", a.Summary)
	}

	e = entry("https://example.com/b")
	e.Description = String("only   description")
	a, _ = n.Normalize(e, testSource)
	if a.Content != "only description" {
		t.Fatalf("content fallback = %q", a.Content)
	}

	e = entry("https://example.com/c")
	e.Content = []ContentBlock{{Value: strings.Repeat("a", 250)}}
	a, _ = n.Normalize(e, testSource)
	if a.Summary != strings.Repeat("a", SummaryExcerptLength)+"..." {
		t.Fatalf("long derived summary = %q", a.Summary)
	}

	e.Summary = String("  explicit summary  ")
	a, _ = n.Normalize(e, testSource)
	if a.Summary != "explicit summary" {
		t.Fatalf("explicit summary = %q", a.Summary)
	}

	e = entry("https://example.com/d")
	a, _ = n.Normalize(e, testSource)
	if a.Content != "" || a.Summary != "" {
		t.Fatalf("empty entry content=%q summary=%q", a.Content, a.Summary)
	}

	e.Summary = String(strings.Repeat("s", model.SummaryMaxLength+5))
	a, _ = n.Normalize(e, testSource)
	if len(a.Summary) != model.SummaryMaxLength {
		t.Fatalf("summary length = %d", len(a.Summary))
	}
}

func TestNormalizeAuthor(t *testing.T) {
	n := New(nil)
	a, _ := n.Normalize(entry("https://example.com/a"), testSource)
	if a.Author != UnknownAuthor {
		t.Fatalf("author = %q", a.Author)
	}
	e := entry("https://example.com/a")
	e.Author = String(" Jane Doe ")
	a, _ = n.Normalize(e, testSource)
	if a.Author != "Jane Doe" {
		t.Fatalf("author = %q", a.Author)
	}
	if a.SourceID != testSource.ID {
		t.Fatalf("source id = %d", a.SourceID)
	}
	if a.CategoryID != nil {
		t.Fatalf("category should be unset")
	}
}

func TestNormalizePublished(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	t.Run("missing uses now", func(t *testing.T) {
		n := New(nil)
		before := time.Now()
		a, _ := n.Normalize(entry("https://example.com/a"), testSource)
		after := time.Now()
		if a.PublishedAt.Before(before) || a.PublishedAt.After(after) {
			t.Fatalf("published %v outside [%v, %v]", a.PublishedAt, before, after)
		}
		if a.PublishedAt.Location() != time.UTC {
			t.Fatalf("location = %v, want UTC", a.PublishedAt.Location())
		}
	})

	t.Run("zoned string", func(t *testing.T) {
		n := New(berlin)
		e := entry("https://example.com/a")
		e.Published = String("Tue, 10 Jun 2003 04:00:00 GMT")
		a, _ := n.Normalize(e, testSource)
		want := time.Date(2003, 6, 10, 4, 0, 0, 0, time.UTC)
		if !a.PublishedAt.Equal(want) {
			t.Fatalf("published = %v, want %v", a.PublishedAt, want)
		}
		if a.PublishedAt.Location() != berlin {
			t.Fatalf("location = %v, want Europe/Berlin", a.PublishedAt.Location())
		}
	})

	t.Run("rfc 822 zone names", func(t *testing.T) {
		cases := []struct {
			in   string
			want time.Time
		}{
			{"Mon, 02 Jan 2006 15:04:05 EST", time.Date(2006, 1, 2, 20, 4, 5, 0, time.UTC)},
			{"Mon, 2 Jan 2006 15:04:05 EDT", time.Date(2006, 1, 2, 19, 4, 5, 0, time.UTC)},
			{"Tue, 04 Jul 2023 08:30:00 PDT", time.Date(2023, 7, 4, 15, 30, 0, 0, time.UTC)},
			{"04 Jul 23 08:30 PST", time.Date(2023, 7, 4, 16, 30, 0, 0, time.UTC)},
			{"Mon, 02 Jan 2006 15:04:05 GMT", time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)},
		}
		n := New(nil)
		for _, tc := range cases {
			e := entry("https://example.com/a")
			e.Published = String(tc.in)
			a, _ := n.Normalize(e, testSource)
			if !a.PublishedAt.Equal(tc.want) {
				t.Errorf("%q: published = %v, want %v", tc.in, a.PublishedAt, tc.want)
			}
		}
	})

	t.Run("unknown zone name falls back to parsed", func(t *testing.T) {
		n := New(nil)
		parsed := time.Date(2006, 1, 2, 8, 4, 5, 0, time.UTC)
		e := entry("https://example.com/a")
		e.Published = String("Mon, 02 Jan 2006 15:04:05 XYZ")
		e.PublishedParsed = &parsed
		a, _ := n.Normalize(e, testSource)
		if !a.PublishedAt.Equal(parsed) {
			t.Fatalf("published = %v, want %v", a.PublishedAt, parsed)
		}
	})

	t.Run("naive string uses configured zone", func(t *testing.T) {
		n := New(berlin)
		e := entry("https://example.com/a")
		e.Published = String("2024-01-15 12:00:00")
		a, _ := n.Normalize(e, testSource)
		want := time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)
		if !a.PublishedAt.Equal(want) {
			t.Fatalf("published = %v, want %v", a.PublishedAt, want)
		}
	})

	t.Run("unparseable falls back to parsed", func(t *testing.T) {
		n := New(nil)
		parsed := time.Date(2020, 2, 3, 4, 5, 6, 0, time.UTC)
		e := entry("https://example.com/a")
		e.Published = String("yesterday-ish")
		e.PublishedParsed = &parsed
		a, _ := n.Normalize(e, testSource)
		if !a.PublishedAt.Equal(parsed) {
			t.Fatalf("published = %v, want %v", a.PublishedAt, parsed)
		}
	})

	t.Run("unparseable without parsed uses now", func(t *testing.T) {
		n := New(nil)
		fixed := time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC)
		n.now = func() time.Time { return fixed }
		e := entry("https://example.com/a")
		e.Published = String("not a date")
		a, _ := n.Normalize(e, testSource)
		if !a.PublishedAt.Equal(fixed) {
			t.Fatalf("published = %v, want %v", a.PublishedAt, fixed)
		}
	})
}

func TestNormalizeImage(t *testing.T) {
	n := New(nil)
	tests := []struct {
		name string
		e    RawEntry
		want string
	}{
		{
			name: "media content first",
			e: RawEntry{
				MediaContent:   []Media{{URL: "https://img/content.jpg"}},
				MediaThumbnail: []Media{{URL: "https://img/thumb.jpg"}},
				Enclosures:     []Enclosure{{URL: "https://img/enc.jpg", Type: "image/jpeg"}},
			},
			want: "https://img/content.jpg",
		},
		{
			name: "thumbnail second",
			e: RawEntry{
				MediaThumbnail: []Media{{URL: "https://img/thumb.jpg"}},
				Enclosures:     []Enclosure{{URL: "https://img/enc.jpg", Type: "image/jpeg"}},
			},
			want: "https://img/thumb.jpg",
		},
		{
			name: "image enclosure only",
			e: RawEntry{
				Enclosures: []Enclosure{
					{URL: "https://audio/ep.mp3", Type: "audio/mpeg"},
					{URL: "https://img/enc.png", Type: "image/png"},
				},
			},
			want: "https://img/enc.png",
		},
		{
			name: "none",
			e:    RawEntry{Enclosures: []Enclosure{{URL: "https://audio/ep.mp3", Type: "audio/mpeg"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.e.Link = String("https://example.com/a")
			a, _ := n.Normalize(tt.e, testSource)
			switch {
			case tt.want == "" && a.ImageURL != nil:
				t.Fatalf("image = %q, want nil", *a.ImageURL)
			case tt.want != "" && (a.ImageURL == nil || *a.ImageURL != tt.want):
				t.Fatalf("image = %v, want %q", a.ImageURL, tt.want)
			}
		})
	}
}
