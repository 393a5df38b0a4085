package articles

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/logger"
)

// Dialect names the SQL backend. Values match database/sql driver names.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "pgx"
)

// ErrNotFound is returned when an article does not exist
var ErrNotFound = errors.New("article not found")

// NotFound returns an error matching both ErrNotFound and errors.ErrNotFound
func NotFound(id string) error {
	return errors.WrapAs(ErrNotFound, errors.ErrNotFound, "article %s", id)
}

var articleColumns = []string{
	"id", "title", "excerpt", "content", "tldr", "status", "category", "published_at", "updated_at",
}

// Store reads and writes articles
type Store struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	closer func()
	logger *zap.SugaredLogger
}

// NewStore creates a store over an open database using the dialect's placeholder format
func NewStore(db *sql.DB, dialect Dialect, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	var format sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		format = sq.Dollar
	}
	return &Store{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(format),
		logger: logger.AddDBSymbol(log.Named("articles")),
	}
}

// Close releases connections the store opened itself. Stores built on a shared database leave it open.
func (s *Store) Close() {
	if s.closer != nil {
		s.closer()
	}
}

// Get returns one article
func (s *Store) Get(ctx context.Context, id string) (*Article, error) {
	found, err := s.FetchByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, NotFound(id)
	}
	if found[0].DecodeErr != nil {
		return nil, found[0].DecodeErr
	}
	return &found[0], nil
}

// FetchByIDs returns the articles among ids that exist, ordered by id.
// Missing ids are simply absent from the result. A row whose content or tldr
// cannot be decoded is returned with DecodeErr set instead of failing the call.
func (s *Store) FetchByIDs(ctx context.Context, ids []string) ([]Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := s.sb.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build article query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %d articles", len(ids))
	}
	defer rows.Close()

	result := make([]Article, 0, len(ids))
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		if a.DecodeErr != nil {
			s.logger.Warnw("Article has unreadable columns", logger.FieldItemID, a.ID, logger.FieldError, a.DecodeErr)
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate articles")
	}
	return result, nil
}

// ScanPage returns up to limit ids matching filter, ordered by id, skipping offset matches
func (s *Store) ScanPage(ctx context.Context, filter Filter, offset, limit int) ([]string, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, errors.Newf("page limit must be positive, got %d", limit)
	}
	if offset < 0 {
		offset = 0
	}

	q := s.sb.Select("id").From("articles")
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Category != "" {
		q = q.Where(sq.Eq{"category": filter.Category})
	}
	if filter.PublishedAfter != nil {
		q = q.Where(sq.GtOrEq{"published_at": filter.PublishedAfter.UTC()})
	}
	if filter.PublishedBefore != nil {
		q = q.Where(sq.Lt{"published_at": filter.PublishedBefore.UTC()})
	}

	query, args, err := q.OrderBy("id").Limit(uint64(limit)).Offset(uint64(offset)).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build scan query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan articles at offset %d", offset)
	}
	defer rows.Close()

	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan article id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "failed to iterate article ids")
}

// Update applies patch to one article and bumps updated_at
func (s *Store) Update(ctx context.Context, id string, patch Patch) error {
	if patch.IsEmpty() {
		return nil
	}

	q := s.sb.Update("articles").Set("updated_at", time.Now().UTC())
	if patch.TLDR != nil {
		value, err := patch.TLDR.Value()
		if err != nil {
			return errors.Wrapf(err, "failed to encode tldr for article %s", id)
		}
		q = q.Set("tldr", value)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return errors.Newf("invalid article status %q", *patch.Status)
		}
		q = q.Set("status", string(*patch.Status))
	}

	query, args, err := q.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build article update")
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to update article %s", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return NotFound(id)
	}

	s.logger.Debugw("Article updated", logger.FieldItemID, id)
	return nil
}

// Upsert inserts an article or replaces every column of an existing one
func (s *Store) Upsert(ctx context.Context, a *Article) error {
	if a.ID == "" {
		return errors.New("article id is required")
	}
	if a.Status == "" {
		a.Status = StatusDraft
	}
	if !a.Status.Valid() {
		return errors.Newf("invalid article status %q", a.Status)
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}

	content, err := a.Content.Value()
	if err != nil {
		return errors.Wrapf(err, "failed to encode content for article %s", a.ID)
	}
	var tldr any
	if a.TLDR != nil {
		if tldr, err = a.TLDR.Value(); err != nil {
			return errors.Wrapf(err, "failed to encode tldr for article %s", a.ID)
		}
	}
	var publishedAt any
	if a.PublishedAt != nil {
		publishedAt = a.PublishedAt.UTC()
	}

	query, args, err := s.sb.Insert("articles").
		Columns(articleColumns...).
		Values(a.ID, a.Title, a.Excerpt, content, tldr, string(a.Status), a.Category, publishedAt, a.UpdatedAt.UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			excerpt = excluded.excerpt,
			content = excluded.content,
			tldr = excluded.tldr,
			status = excluded.status,
			category = excluded.category,
			published_at = excluded.published_at,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build article upsert")
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "failed to upsert article %s", a.ID)
	}
	return nil
}

func scanArticle(rows *sql.Rows) (*Article, error) {
	var (
		a           Article
		content     []byte
		tldr        []byte
		status      string
		publishedAt sql.NullTime
	)
	if err := rows.Scan(&a.ID, &a.Title, &a.Excerpt, &content, &tldr, &status, &a.Category, &publishedAt, &a.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to scan article")
	}

	if content != nil {
		if err := a.Content.Scan(content); err != nil {
			a.DecodeErr = errors.Wrapf(err, "article %s has unreadable content", a.ID)
		}
	}
	t, err := decodeTLDR(tldr)
	if err != nil {
		a.DecodeErr = errors.CombineErrors(a.DecodeErr, errors.Wrapf(err, "article %s has an unreadable tldr", a.ID))
	}
	a.TLDR = t
	a.Status = Status(status)
	if publishedAt.Valid {
		p := publishedAt.Time
		a.PublishedAt = &p
	}
	return &a, nil
}
