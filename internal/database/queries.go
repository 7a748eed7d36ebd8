package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/bryan-buckman/techpulse/internal/model"
	"github.com/bryan-buckman/techpulse/internal/slug"
)

// upsertAttempts bounds retries after a unique-constraint race.
const upsertAttempts = 3

const (
	sourceColumns   = "id, name, url, source_type, is_active, fetch_interval, last_fetched, created_at, updated_at"
	categoryColumns = "id, name, slug, description, created_at"
	articleColumns  = "id, title, slug, url, content, summary, image_url, author, source_id, category_id, published_at, fetched_at, updated_at"
)

// queries holds the SQL shared by both backends. Statements are written with
// '?' placeholders and rebound for the backend's placeholder format.
type queries struct {
	conn        *sql.DB
	placeholder sq.PlaceholderFormat
	isUnique    func(error) bool
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (q *queries) bind(query string) string {
	out, err := q.placeholder.ReplacePlaceholders(query)
	if err != nil {
		return query
	}
	return out
}

func (q *queries) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(q.placeholder)
}

// --- Source Methods ---

// CreateSource inserts src and fills in its ID and timestamps.
func (q *queries) CreateSource(ctx context.Context, src *model.Source) error {
	src.Name = strings.TrimSpace(src.Name)
	src.URL = strings.TrimSpace(src.URL)
	if src.Name == "" || src.URL == "" {
		return fmt.Errorf("create source: name and url are required")
	}
	if src.Type == "" {
		src.Type = model.SourceRSS
	}
	if !src.Type.Valid() {
		return fmt.Errorf("create source: unknown source type %q", src.Type)
	}
	if src.FetchInterval <= 0 {
		src.FetchInterval = model.DefaultFetchInterval
	}
	now := time.Now().UTC()
	err := q.conn.QueryRowContext(ctx, q.bind(`
		INSERT INTO sources (name, url, source_type, is_active, fetch_interval, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		src.Name, src.URL, string(src.Type), src.IsActive, src.FetchInterval, now, now).Scan(&src.ID)
	if err != nil {
		return fmt.Errorf("create source %s: %w", src.URL, err)
	}
	src.CreatedAt, src.UpdatedAt = now, now
	return nil
}

// GetOrCreateSource finds an RSS source by URL, or creates an active one.
func (q *queries) GetOrCreateSource(ctx context.Context, name, url string) (*model.Source, bool, error) {
	row := q.conn.QueryRowContext(ctx, q.bind("SELECT "+sourceColumns+" FROM sources WHERE url = ?"), url)
	src, err := scanSource(row)
	if err == nil {
		return src, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}
	src = &model.Source{Name: name, URL: url, Type: model.SourceRSS, IsActive: true}
	if err := q.CreateSource(ctx, src); err != nil {
		return nil, false, err
	}
	return src, true, nil
}

// GetSourceByID returns a single source.
func (q *queries) GetSourceByID(ctx context.Context, id int64) (*model.Source, error) {
	row := q.conn.QueryRowContext(ctx, q.bind("SELECT "+sourceColumns+" FROM sources WHERE id = ?"), id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return src, err
}

// ListSources returns sources matching f, ordered by name.
func (q *queries) ListSources(ctx context.Context, f SourceFilter) ([]model.Source, error) {
	b := q.builder().Select(sourceColumns).From("sources").OrderBy("name")
	if f.ID != nil {
		b = b.Where(sq.Eq{"id": *f.ID})
	}
	if f.Active != nil {
		b = b.Where(sq.Eq{"is_active": *f.Active})
	}
	if f.Type != nil {
		b = b.Where(sq.Eq{"source_type": string(*f.Type)})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build source query: %w", err)
	}
	rows, err := q.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sources []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// UpdateSourceLastFetched updates the last_fetched timestamp for a source.
func (q *queries) UpdateSourceLastFetched(ctx context.Context, id int64, t time.Time) error {
	res, err := q.conn.ExecContext(ctx, q.bind("UPDATE sources SET last_fetched = ?, updated_at = ? WHERE id = ?"),
		t.UTC(), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// DeleteSource removes a source; its articles cascade.
func (q *queries) DeleteSource(ctx context.Context, id int64) error {
	res, err := q.conn.ExecContext(ctx, q.bind("DELETE FROM sources WHERE id = ?"), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func scanSource(r rowScanner) (*model.Source, error) {
	var (
		s           model.Source
		sourceType  string
		lastFetched sql.NullTime
	)
	if err := r.Scan(&s.ID, &s.Name, &s.URL, &sourceType, &s.IsActive, &s.FetchInterval,
		&lastFetched, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Type = model.SourceType(sourceType)
	if lastFetched.Valid {
		t := lastFetched.Time
		s.LastFetched = &t
	}
	return &s, nil
}

// --- Category Methods ---

// CreateCategory inserts a category with a unique slug derived from name.
func (q *queries) CreateCategory(ctx context.Context, name, description string) (c *model.Category, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create category: name is required")
	}
	tx, err := q.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	s, err := slug.Unique(ctx, slug.Make(name), "category", model.CategorySlugMaxLength, q.slugTaken(tx, "categories"))
	if err != nil {
		return nil, fmt.Errorf("create category %q: %w", name, err)
	}
	c = &model.Category{Name: name, Slug: s, Description: description, CreatedAt: time.Now().UTC()}
	err = tx.QueryRowContext(ctx, q.bind(`
		INSERT INTO categories (name, slug, description, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`), c.Name, c.Slug, c.Description, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("create category %q: %w", name, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCategoryByName returns the category with exactly this name.
func (q *queries) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	var c model.Category
	err := q.conn.QueryRowContext(ctx, q.bind("SELECT "+categoryColumns+" FROM categories WHERE name = ?"), name).
		Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all categories ordered by name.
func (q *queries) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := q.conn.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cats []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// DeleteCategory removes a category; its articles keep existing uncategorized.
func (q *queries) DeleteCategory(ctx context.Context, id int64) error {
	res, err := q.conn.ExecContext(ctx, q.bind("DELETE FROM categories WHERE id = ?"), id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// --- Article Methods ---

// UpsertArticle inserts or updates an article keyed by url. A unique
// violation means a concurrent writer won the insert; the operation is then
// retried and lands on the update path.
func (q *queries) UpsertArticle(ctx context.Context, a *model.Article) (bool, error) {
	if a.URL == "" {
		return false, ErrMissingURL
	}
	created, err := retryOnUnique(upsertAttempts, q.isUnique, func() (bool, error) {
		return q.upsertOnce(ctx, a)
	})
	if err != nil {
		return false, fmt.Errorf("upsert article %s: %w", a.URL, err)
	}
	return created, nil
}

// retryOnUnique runs fn until it succeeds, fails with an error isUnique
// rejects, or attempts run out.
func retryOnUnique(attempts int, isUnique func(error) bool, fn func() (bool, error)) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		created, err := fn()
		if err == nil {
			return created, nil
		}
		if !isUnique(err) {
			return false, err
		}
		lastErr = err
	}
	return false, fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr)
}

func (q *queries) upsertOnce(ctx context.Context, a *model.Article) (created bool, err error) {
	tx, err := q.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var (
		id        int64
		s         string
		fetchedAt time.Time
	)
	err = tx.QueryRowContext(ctx, q.bind("SELECT id, slug, fetched_at FROM articles WHERE url = ?"), a.URL).
		Scan(&id, &s, &fetchedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s, err = slug.Unique(ctx, slug.Make(a.Title), "article", model.ArticleSlugMaxLength, q.slugTaken(tx, "articles"))
		if err != nil {
			return false, err
		}
		fetchedAt = now
		err = tx.QueryRowContext(ctx, q.bind(`
			INSERT INTO articles (title, slug, url, content, summary, image_url, author,
				source_id, category_id, published_at, fetched_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`),
			a.Title, s, a.URL, a.Content, a.Summary, a.ImageURL, a.Author,
			a.SourceID, a.CategoryID, a.PublishedAt.UTC(), fetchedAt, now).Scan(&id)
		if err != nil {
			return false, err
		}
		created = true
	case err != nil:
		return false, err
	default:
		_, err = tx.ExecContext(ctx, q.bind(`
			UPDATE articles SET title = ?, content = ?, summary = ?, image_url = ?, author = ?,
				source_id = ?, category_id = ?, published_at = ?, updated_at = ?
			WHERE id = ?`),
			a.Title, a.Content, a.Summary, a.ImageURL, a.Author,
			a.SourceID, a.CategoryID, a.PublishedAt.UTC(), now, id)
		if err != nil {
			return false, err
		}
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	a.ID, a.Slug, a.FetchedAt, a.UpdatedAt = id, s, fetchedAt, now
	return created, nil
}

// GetArticleByURL returns the article stored under url.
func (q *queries) GetArticleByURL(ctx context.Context, url string) (*model.Article, error) {
	a, err := scanArticle(q.conn.QueryRowContext(ctx, q.bind("SELECT "+articleColumns+" FROM articles WHERE url = ?"), url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListArticles returns articles matching f, newest first.
func (q *queries) ListArticles(ctx context.Context, f ArticleFilter) ([]model.Article, error) {
	b := q.builder().Select(articleColumns).From("articles").OrderBy("published_at DESC", "id DESC")
	if f.SourceID != nil {
		b = b.Where(sq.Eq{"source_id": *f.SourceID})
	}
	if f.CategoryID != nil {
		b = b.Where(sq.Eq{"category_id": *f.CategoryID})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build article query: %w", err)
	}
	rows, err := q.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var articles []model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

func scanArticle(r rowScanner) (*model.Article, error) {
	var (
		a          model.Article
		imageURL   sql.NullString
		categoryID sql.NullInt64
	)
	if err := r.Scan(&a.ID, &a.Title, &a.Slug, &a.URL, &a.Content, &a.Summary, &imageURL, &a.Author,
		&a.SourceID, &categoryID, &a.PublishedAt, &a.FetchedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if imageURL.Valid {
		s := imageURL.String
		a.ImageURL = &s
	}
	if categoryID.Valid {
		id := categoryID.Int64
		a.CategoryID = &id
	}
	return &a, nil
}

// --- Helpers ---

// slugTaken probes table inside the caller's transaction.
func (q *queries) slugTaken(tx queryer, table string) slug.TakenFunc {
	query := q.bind("SELECT COUNT(*) FROM " + table + " WHERE slug = ?")
	return func(ctx context.Context, candidate string) (bool, error) {
		var n int
		if err := tx.QueryRowContext(ctx, query, candidate).Scan(&n); err != nil {
			return false, err
		}
		return n > 0, nil
	}
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
