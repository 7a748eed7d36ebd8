// Package normalize turns raw feed entries into canonical article records.
package normalize

import "time"

// RawEntry is one item as reported by a feed. Every field is optional: nil
// pointers and empty slices mean the feed did not supply the field.
type RawEntry struct {
	Title       *string
	Link        *string
	Content     []ContentBlock
	Description *string
	Summary     *string
	Author      *string

	// Published is the date string as it appeared in the feed.
	Published *string
	// PublishedParsed is the feed library's own reading of Published.
	PublishedParsed *time.Time

	MediaContent   []Media
	MediaThumbnail []Media
	Enclosures     []Enclosure
}

// ContentBlock is a structured content element (content:encoded, atom:content).
type ContentBlock struct {
	Value string
	Type  string
}

// Media is a media:content or media:thumbnail element.
type Media struct {
	URL    string
	Medium string
}

// Enclosure is an RSS enclosure or an Atom link with rel="enclosure".
type Enclosure struct {
	URL  string
	Type string
}

// String returns a pointer to s, for building entries in code and tests.
func String(s string) *string { return &s }
