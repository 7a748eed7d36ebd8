// Package model defines shared data structures.
package model

import "time"

// SourceType is how articles are obtained from a source.
type SourceType string

// Source types. Only RSS sources are fetched by the ingest pipeline.
const (
	SourceRSS     SourceType = "RSS"
	SourceAPI     SourceType = "API"
	SourceScraper SourceType = "SCRAPER"
)

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	switch t {
	case SourceRSS, SourceAPI, SourceScraper:
		return true
	}
	return false
}

// Field length bounds, counted in characters.
const (
	SourceNameMaxLength   = 200
	CategoryNameMaxLength = 100
	CategorySlugMaxLength = 120
	TitleMaxLength        = 500
	ArticleSlugMaxLength  = 550
	URLMaxLength          = 2048
	SummaryMaxLength      = 1000
	ImageURLMaxLength     = 2048
	AuthorMaxLength       = 200
)

// DefaultFetchInterval is the fetch cadence in minutes for new sources.
const DefaultFetchInterval = 60

// Source is a configured feed endpoint.
type Source struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Type          SourceType `json:"source_type"`
	IsActive      bool       `json:"is_active"`
	FetchInterval int        `json:"fetch_interval"` // minutes
	LastFetched   *time.Time `json:"last_fetched"`   // nil until the first successful fetch
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Due reports whether the source's fetch interval has elapsed at now.
func (s Source) Due(now time.Time) bool {
	if s.LastFetched == nil {
		return true
	}
	interval := s.FetchInterval
	if interval <= 0 {
		interval = DefaultFetchInterval
	}
	return !now.Before(s.LastFetched.Add(time.Duration(interval) * time.Minute))
}

// Category is a topical bucket for articles.
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Article is a normalized, persisted feed entry.
type Article struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	Summary     string    `json:"summary"`
	ImageURL    *string   `json:"image_url"`
	Author      string    `json:"author"`
	SourceID    int64     `json:"source_id"`
	CategoryID  *int64    `json:"category_id"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"` // set once on insert
	UpdatedAt   time.Time `json:"updated_at"`
}
