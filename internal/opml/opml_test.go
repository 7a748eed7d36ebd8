package opml

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bryan-buckman/techpulse/internal/model"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head><title>Subscriptions</title></head>
  <body>
    <outline text="Top level" xmlUrl="https://top.example/feed"/>
    <outline text="Tech">
      <outline text="ignored" title="Nested" xmlUrl="https://nested.example/rss"/>
      <outline text="Deeper">
        <outline xmlUrl="https://deep.example/atom"/>
      </outline>
    </outline>
  </body>
</opml>`

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []FeedEntry{
		{Title: "Top level", URL: "https://top.example/feed"},
		{Title: "Nested", URL: "https://nested.example/rss"},
		{Title: "https://deep.example/atom", URL: "https://deep.example/atom"},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}

	if _, err := Parse(strings.NewReader("<opml")); err == nil {
		t.Fatal("truncated document accepted")
	}
}

type fakeRegistry struct {
	known map[string]bool
	fail  string
}

func (f *fakeRegistry) GetOrCreateSource(_ context.Context, name, url string) (*model.Source, bool, error) {
	if url == f.fail {
		return nil, false, errors.New("insert failed")
	}
	if f.known[url] {
		return &model.Source{Name: name, URL: url}, false, nil
	}
	f.known[url] = true
	return &model.Source{Name: name, URL: url}, true, nil
}

func TestImport(t *testing.T) {
	reg := &fakeRegistry{
		known: map[string]bool{"https://top.example/feed": true},
		fail:  "https://deep.example/atom",
	}
	res, err := Import(context.Background(), reg, strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Added != 1 || res.Existing != 1 || res.Failed != 1 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestExportRoundTrip(t *testing.T) {
	sources := []model.Source{
		{Name: "Alpha", URL: "https://alpha.example/feed"},
		{Name: "Beta & Co", URL: "https://beta.example/rss?x=1&y=2"},
	}
	out, err := Export("techpulse sources", sources)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("<?xml")) {
		t.Fatalf("missing xml header: %s", out)
	}
	entries, err := Parse(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Parse(Export): %v", err)
	}
	if len(entries) != 2 || entries[1].Title != "Beta & Co" || entries[1].URL != sources[1].URL {
		t.Fatalf("entries = %+v", entries)
	}
}
