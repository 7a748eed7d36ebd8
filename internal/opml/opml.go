// Package opml imports and exports feed sources as OPML documents.
package opml

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bryan-buckman/techpulse/internal/model"
)

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline is a folder or a feed.
type Outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// FeedEntry is one feed found in a document. Folders are flattened away.
type FeedEntry struct {
	Title string
	URL   string
}

// Parse reads an OPML document and returns every feed outline in document
// order, descending into folders.
func Parse(r io.Reader) ([]FeedEntry, error) {
	var doc OPML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode opml: %w", err)
	}
	var entries []FeedEntry
	var walk func(outlines []Outline)
	walk = func(outlines []Outline) {
		for _, o := range outlines {
			if url := strings.TrimSpace(o.XMLURL); url != "" {
				title := strings.TrimSpace(o.Title)
				if title == "" {
					title = strings.TrimSpace(o.Text)
				}
				if title == "" {
					title = url
				}
				entries = append(entries, FeedEntry{Title: title, URL: url})
				continue
			}
			walk(o.Outlines)
		}
	}
	walk(doc.Body.Outlines)
	return entries, nil
}

// SourceRegistry is the storage needed to import sources.
type SourceRegistry interface {
	GetOrCreateSource(ctx context.Context, name, url string) (*model.Source, bool, error)
}

// ImportResult counts what Import did.
type ImportResult struct {
	Added    int      `json:"added"`
	Existing int      `json:"existing"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Import registers every feed in the document as an active RSS source.
// Feeds whose URL is already known are left alone. Per-feed failures are
// collected; only a document that cannot be parsed is an error.
func Import(ctx context.Context, reg SourceRegistry, r io.Reader) (*ImportResult, error) {
	entries, err := Parse(r)
	if err != nil {
		return nil, err
	}
	res := &ImportResult{}
	for _, e := range entries {
		if utf8.RuneCountInString(e.URL) > model.URLMaxLength {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: url too long", e.Title))
			continue
		}
		_, created, err := reg.GetOrCreateSource(ctx, truncate(e.Title, model.SourceNameMaxLength), e.URL)
		switch {
		case err != nil:
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", e.URL, err))
		case created:
			res.Added++
		default:
			res.Existing++
		}
	}
	return res, nil
}

// Export renders sources as a flat OPML 2.0 document.
func Export(title string, sources []model.Source) ([]byte, error) {
	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: time.Now().UTC().Format(time.RFC1123Z),
		},
	}
	for _, src := range sources {
		doc.Body.Outlines = append(doc.Body.Outlines, Outline{
			Text:   src.Name,
			Title:  src.Name,
			Type:   "rss",
			XMLURL: src.URL,
		})
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), output...), nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
