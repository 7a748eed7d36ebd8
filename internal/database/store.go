// Package database provides storage backends for sources, categories and articles.
package database

import (
	"context"
	"errors"
	"time"

	"github.com/bryan-buckman/techpulse/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("database: not found")

// ErrMissingURL is returned when an article without a url reaches UpsertArticle.
var ErrMissingURL = errors.New("database: article has no url")

// SourceFilter narrows ListSources. Nil fields do not filter.
type SourceFilter struct {
	ID     *int64
	Active *bool
	Type   *model.SourceType
}

// ArticleFilter narrows ListArticles. Nil fields do not filter.
type ArticleFilter struct {
	SourceID   *int64
	CategoryID *int64
	Limit      uint64
}

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// SupportsHighConcurrency returns true if the database can handle
	// many concurrent write operations (e.g., PostgreSQL).
	// SQLite returns false due to write locking limitations.
	SupportsHighConcurrency() bool

	// Source operations
	CreateSource(ctx context.Context, src *model.Source) error
	GetOrCreateSource(ctx context.Context, name, url string) (*model.Source, bool, error)
	GetSourceByID(ctx context.Context, id int64) (*model.Source, error)
	ListSources(ctx context.Context, f SourceFilter) ([]model.Source, error)
	UpdateSourceLastFetched(ctx context.Context, id int64, t time.Time) error
	DeleteSource(ctx context.Context, id int64) error

	// Category operations
	CreateCategory(ctx context.Context, name, description string) (*model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	// Article operations

	// UpsertArticle inserts the article or, when its url is already stored,
	// replaces every field except fetched_at and slug. It reports whether a
	// row was created and fills in ID, Slug, FetchedAt and UpdatedAt.
	UpsertArticle(ctx context.Context, a *model.Article) (created bool, err error)
	GetArticleByURL(ctx context.Context, url string) (*model.Article, error)
	ListArticles(ctx context.Context, f ArticleFilter) ([]model.Article, error)
}

// Bool returns a pointer to b, for building filters.
func Bool(b bool) *bool { return &b }

// Int64 returns a pointer to n, for building filters.
func Int64(n int64) *int64 { return &n }
