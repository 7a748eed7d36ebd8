package normalize

import (
	"errors"
	"strings"
	"time"

	"github.com/bryan-buckman/techpulse/internal/model"
)

// Sentinel values for missing fields.
const (
	UntitledTitle = "Untitled Article"
	UnknownAuthor = "Unknown"
)

// SummaryExcerptLength is how many characters of content become a derived summary.
const SummaryExcerptLength = 200

// ErrUnusableEntry is returned for entries without a link.
var ErrUnusableEntry = errors.New("normalize: entry has no usable url")

type zoneKind int

const (
	zoneNone   zoneKind = iota // read in the normalizer's location
	zoneOffset                 // numeric offset
	zoneAbbrev                 // RFC 822 zone name
)

// dateLayouts are tried in order.
var dateLayouts = []struct {
	layout string
	zone   zoneKind
}{
	{time.RFC1123Z, zoneOffset},
	{time.RFC1123, zoneAbbrev},
	{"Mon, 2 Jan 2006 15:04:05 -0700", zoneOffset},
	{"Mon, 2 Jan 2006 15:04:05 MST", zoneAbbrev},
	{"2 Jan 2006 15:04:05 -0700", zoneOffset},
	{"2 Jan 2006 15:04:05 MST", zoneAbbrev},
	{time.RFC822Z, zoneOffset},
	{time.RFC822, zoneAbbrev},
	{time.RFC3339Nano, zoneOffset},
	{time.RFC3339, zoneOffset},
	{"2006-01-02T15:04:05", zoneNone},
	{"2006-01-02 15:04:05", zoneNone},
	{"Mon, 02 Jan 2006 15:04:05", zoneNone},
	{"Mon, 2 Jan 2006 15:04:05", zoneNone},
	{"2006-01-02", zoneNone},
}

// rfc822Zones maps the zone names RFC 822 defines to offsets in hours.
// time.Parse knows only UTC, GMT and the local zone; any other name parses
// with a zero offset.
var rfc822Zones = map[string]int{
	"UT": 0, "UTC": 0, "GMT": 0, "Z": 0,
	"EST": -5, "EDT": -4,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
}

// Normalizer converts raw entries into articles. It is safe for concurrent use.
type Normalizer struct {
	loc *time.Location
	now func() time.Time
}

// New creates a normalizer that reads naive timestamps in loc (UTC when nil).
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc, now: time.Now}
}

// Normalize builds the article for raw as reported by src. The only error is
// ErrUnusableEntry; malformed fields fall back to defaults.
func (n *Normalizer) Normalize(raw RawEntry, src model.Source) (model.Article, error) {
	url := truncate(strings.TrimSpace(deref(raw.Link)), model.URLMaxLength)
	if url == "" {
		return model.Article{}, ErrUnusableEntry
	}

	title := strings.TrimSpace(deref(raw.Title))
	if title == "" {
		title = UntitledTitle
	}

	content := collapseSpace(pickContent(raw))

	author := strings.TrimSpace(deref(raw.Author))
	if author == "" {
		author = UnknownAuthor
	}

	return model.Article{
		Title:       truncate(title, model.TitleMaxLength),
		URL:         url,
		Content:     content,
		Summary:     truncate(pickSummary(raw, content), model.SummaryMaxLength),
		ImageURL:    pickImage(raw),
		Author:      truncate(author, model.AuthorMaxLength),
		SourceID:    src.ID,
		PublishedAt: n.published(raw),
	}, nil
}

func pickContent(raw RawEntry) string {
	if len(raw.Content) > 0 {
		return raw.Content[0].Value
	}
	return deref(raw.Description)
}

func pickSummary(raw RawEntry, content string) string {
	if s := strings.TrimSpace(deref(raw.Summary)); s != "" {
		return s
	}
	if content == "" {
		return ""
	}
	r := []rune(content)
	if len(r) > SummaryExcerptLength {
		return string(r[:SummaryExcerptLength]) + "..."
	}
	return content
}

// pickImage prefers media:content, then media:thumbnail, then the first
// image enclosure.
func pickImage(raw RawEntry) *string {
	var url string
	switch {
	case len(raw.MediaContent) > 0 && strings.TrimSpace(raw.MediaContent[0].URL) != "":
		url = raw.MediaContent[0].URL
	case len(raw.MediaThumbnail) > 0 && strings.TrimSpace(raw.MediaThumbnail[0].URL) != "":
		url = raw.MediaThumbnail[0].URL
	default:
		for _, enc := range raw.Enclosures {
			if strings.HasPrefix(strings.ToLower(enc.Type), "image/") && strings.TrimSpace(enc.URL) != "" {
				url = enc.URL
				break
			}
		}
	}
	url = truncate(strings.TrimSpace(url), model.ImageURLMaxLength)
	if url == "" {
		return nil
	}
	return &url
}

func (n *Normalizer) published(raw RawEntry) time.Time {
	if raw.Published != nil {
		if t, ok := n.parseDate(*raw.Published); ok {
			return t
		}
	}
	if raw.PublishedParsed != nil && !raw.PublishedParsed.IsZero() {
		return raw.PublishedParsed.In(n.loc)
	}
	return n.now().In(n.loc)
}

func (n *Normalizer) parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if l.zone == zoneNone {
			t, err = time.ParseInLocation(l.layout, s, n.loc)
		} else {
			t, err = time.Parse(l.layout, s)
		}
		if err != nil {
			continue
		}
		if l.zone == zoneAbbrev {
			var ok bool
			if t, ok = fixAbbrevZone(t); !ok {
				return time.Time{}, false
			}
		}
		return t.In(n.loc), true
	}
	return time.Time{}, false
}

// fixAbbrevZone rebuilds t with the real offset of its zone name. Names
// outside the RFC 822 table are rejected.
func fixAbbrevZone(t time.Time) (time.Time, bool) {
	name, offset := t.Zone()
	hours, ok := rfc822Zones[strings.ToUpper(name)]
	if !ok {
		// The local zone's own abbreviation parses with its real offset.
		return t, offset != 0
	}
	if offset == hours*3600 {
		return t, true
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		time.FixedZone(name, hours*3600)), true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to at most limit characters.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
