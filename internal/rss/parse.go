package rss

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"golang.org/x/net/html/charset"

	"github.com/bryan-buckman/techpulse/internal/normalize"
)

// ErrMalformedFeed marks a document that is not a well-formed feed.
var ErrMalformedFeed = errors.New("rss: malformed feed")

// Feed is a parsed feed document.
type Feed struct {
	Title   string
	Entries []normalize.RawEntry
	// Malformed is set when the document did not fully conform to feed
	// syntax but the parser still recovered entries.
	Malformed error
}

// Parser turns feed documents into raw entries. It is safe for concurrent use.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads body. A document that yields no entries and is malformed is a
// hard error wrapping ErrMalformedFeed. A malformed document that still
// yields entries is returned with Feed.Malformed set.
func (p *Parser) Parse(body []byte) (*Feed, error) {
	// gofeed.Parser keeps per-call state, so each parse gets its own.
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	var malformed error
	if gofeed.DetectFeedType(bytes.NewReader(body)) != gofeed.FeedTypeJSON {
		malformed = checkWellFormed(body)
	}

	f := &Feed{
		Title:   strings.TrimSpace(parsed.Title),
		Entries: make([]normalize.RawEntry, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		f.Entries = append(f.Entries, entryFromItem(item))
	}
	if malformed != nil {
		if len(f.Entries) == 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, malformed)
		}
		f.Malformed = malformed
	}
	return f, nil
}

// checkWellFormed runs a strict XML pass over body. gofeed itself is lenient,
// so this is what detects documents it silently repaired.
func checkWellFormed(body []byte) error {
	d := xml.NewDecoder(bytes.NewReader(body))
	d.Strict = true
	d.CharsetReader = charset.NewReaderLabel
	for {
		_, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func entryFromItem(item *gofeed.Item) normalize.RawEntry {
	e := normalize.RawEntry{
		Title:           optional(item.Title),
		Link:            optional(item.Link),
		Description:     optional(item.Description),
		Summary:         optional(item.Description),
		Published:       optional(item.Published),
		PublishedParsed: item.PublishedParsed,
	}
	if e.Link == nil && len(item.Links) > 0 {
		e.Link = optional(item.Links[0])
	}
	if item.Content != "" {
		e.Content = []normalize.ContentBlock{{Value: item.Content}}
	}
	if item.Author != nil && item.Author.Name != "" {
		e.Author = optional(item.Author.Name)
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		e.Author = optional(item.Authors[0].Name)
	}
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		e.Enclosures = append(e.Enclosures, normalize.Enclosure{URL: enc.URL, Type: enc.Type})
	}
	media := item.Extensions["media"]
	e.MediaContent = mediaRefs(media, "content")
	e.MediaThumbnail = mediaRefs(media, "thumbnail")
	return e
}

// mediaRefs collects Media RSS elements named name, including those nested
// in media:group.
func mediaRefs(media map[string][]ext.Extension, name string) []normalize.Media {
	if media == nil {
		return nil
	}
	var out []normalize.Media
	for _, m := range media[name] {
		out = append(out, normalize.Media{URL: m.Attrs["url"], Medium: m.Attrs["medium"]})
	}
	for _, g := range media["group"] {
		for _, m := range g.Children[name] {
			out = append(out, normalize.Media{URL: m.Attrs["url"], Medium: m.Attrs["medium"]})
		}
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
