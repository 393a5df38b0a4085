package articles

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/newsdesk/errors"
	ndtest "github.com/teranos/newsdesk/internal/testing"
)

func timePtr(t time.Time) *time.Time { return &t }

func seedArticles(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 12; i++ {
		status := StatusPublished
		if i%4 == 0 {
			status = StatusDraft
		}
		category := "politics"
		if i%2 == 0 {
			category = "sports"
		}
		require.NoError(t, s.Upsert(ctx, &Article{
			ID:          fmt.Sprintf("art-%02d", i),
			Title:       fmt.Sprintf("Story %d", i),
			Content:     PlainContent("Body"),
			Status:      status,
			Category:    category,
			PublishedAt: timePtr(base.AddDate(0, 0, i)),
		}))
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	s := NewStore(ndtest.CreateTestDB(t), DialectSQLite, nil)
	ctx := context.Background()

	published := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	in := &Article{
		ID:      "a1",
		Title:   "Bridge reopens",
		Excerpt: "After two years",
		Content: BlockContent(
			Block{Type: BlockHeading, Text: "Traffic"},
			Block{Type: BlockList, Items: []string{"Lane 1", "Lane 2"}},
		),
		TLDR:        &TLDR{Summary: "Open again"},
		Status:      StatusPublished,
		Category:    "local",
		PublishedAt: &published,
	}
	require.NoError(t, s.Upsert(ctx, in))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Bridge reopens", got.Title)
	assert.Equal(t, "Traffic\n\n- Lane 1\n- Lane 2", got.Content.Text())
	require.NotNil(t, got.TLDR)
	assert.Equal(t, "Open again", got.TLDR.Summary)
	assert.Equal(t, StatusPublished, got.Status)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, published.Equal(*got.PublishedAt))

	in.Title = "Bridge reopens early"
	in.TLDR = nil
	require.NoError(t, s.Upsert(ctx, in))
	got, err = s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Bridge reopens early", got.Title)
	assert.Nil(t, got.TLDR)
}

func TestStore_GetMissing(t *testing.T) {
	s := NewStore(ndtest.CreateTestDB(t), DialectSQLite, nil)

	_, err := s.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStore_FetchByIDs(t *testing.T) {
	s := NewStore(ndtest.CreateTestDB(t), DialectSQLite, nil)
	seedArticles(t, s)

	got, err := s.FetchByIDs(context.Background(), []string{"art-03", "missing", "art-01"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "art-01", got[0].ID)
	assert.Equal(t, "art-03", got[1].ID)

	none, err := s.FetchByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_FetchByIDsIsolatesUnreadableRows(t *testing.T) {
	conn := ndtest.CreateTestDB(t)
	s := NewStore(conn, DialectSQLite, nil)
	seedArticles(t, s)
	ctx := context.Background()

	_, err := conn.Exec(`UPDATE articles SET content = ? WHERE id = ?`, `{"type":"doc","content":[]}`, "art-02")
	require.NoError(t, err)
	_, err = conn.Exec(`UPDATE articles SET content = ? WHERE id = ?`, `2024`, "art-03")
	require.NoError(t, err)
	_, err = conn.Exec(`UPDATE articles SET tldr = ? WHERE id = ?`, `"not an object"`, "art-04")
	require.NoError(t, err)

	got, err := s.FetchByIDs(ctx, []string{"art-01", "art-02", "art-03", "art-04", "art-05"})
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.NoError(t, got[0].DecodeErr)
	require.Error(t, got[1].DecodeErr)
	assert.Contains(t, got[1].DecodeErr.Error(), "article art-02 has unreadable content")
	assert.NoError(t, got[2].DecodeErr)
	assert.Equal(t, "2024", got[2].Content.Text())
	require.Error(t, got[3].DecodeErr)
	assert.Contains(t, got[3].DecodeErr.Error(), "article art-04 has an unreadable tldr")
	assert.NoError(t, got[4].DecodeErr)

	_, err = s.Get(ctx, "art-02")
	assert.Error(t, err)
	_, err = s.Get(ctx, "art-03")
	assert.NoError(t, err)
}

func TestStore_ScanPage(t *testing.T) {
	s := NewStore(ndtest.CreateTestDB(t), DialectSQLite, nil)
	seedArticles(t, s)
	ctx := context.Background()

	t.Run("pages in id order", func(t *testing.T) {
		first, err := s.ScanPage(ctx, Filter{}, 0, 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"art-01", "art-02", "art-03", "art-04", "art-05"}, first)

		last, err := s.ScanPage(ctx, Filter{}, 10, 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"art-11", "art-12"}, last)
	})

	t.Run("status and category", func(t *testing.T) {
		ids, err := s.ScanPage(ctx, Filter{Status: StatusDraft, Category: "sports"}, 0, 100)
		require.NoError(t, err)
		assert.Equal(t, []string{"art-04", "art-08", "art-12"}, ids)
	})

	t.Run("published window", func(t *testing.T) {
		after := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
		before := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
		ids, err := s.ScanPage(ctx, Filter{PublishedAfter: &after, PublishedBefore: &before}, 0, 100)
		require.NoError(t, err)
		assert.Equal(t, []string{"art-03", "art-04", "art-05"}, ids)
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := s.ScanPage(ctx, Filter{Status: "bogus"}, 0, 10)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidFilter))
		assert.True(t, errors.IsInvalidRequestError(err))
	})

	t.Run("non-positive limit", func(t *testing.T) {
		_, err := s.ScanPage(ctx, Filter{}, 0, 0)
		assert.Error(t, err)
	})
}

func TestStore_Update(t *testing.T) {
	s := NewStore(ndtest.CreateTestDB(t), DialectSQLite, nil)
	seedArticles(t, s)
	ctx := context.Background()

	tldr := (&TLDR{Summary: "kept"}).WithContext(fullContext)
	require.NoError(t, s.Update(ctx, "art-02", Patch{TLDR: tldr}))

	got, err := s.Get(ctx, "art-02")
	require.NoError(t, err)
	assert.True(t, got.TLDR.HasCompleteContext())
	assert.Equal(t, "kept", got.TLDR.Summary)

	archived := StatusArchived
	require.NoError(t, s.Update(ctx, "art-02", Patch{Status: &archived}))
	got, err = s.Get(ctx, "art-02")
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, got.Status)
	assert.True(t, got.TLDR.HasCompleteContext(), "status patch leaves tldr alone")

	err = s.Update(ctx, "missing", Patch{TLDR: tldr})
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.NoError(t, s.Update(ctx, "missing", Patch{}), "empty patch is a no-op")
}

func TestFilter_Validate(t *testing.T) {
	a := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(time.Hour)

	assert.NoError(t, Filter{}.Validate())
	assert.NoError(t, Filter{Status: StatusArchived, PublishedAfter: &a, PublishedBefore: &b}.Validate())

	err := Filter{PublishedAfter: &b, PublishedBefore: &a}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidFilter))

	err = Filter{PublishedAfter: &a, PublishedBefore: &a}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidFilter))
}

func TestStore_PostgresPlaceholders(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	s := NewStore(conn, DialectPostgres, nil)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id FROM articles WHERE status = $1 AND category = $2 ORDER BY id LIMIT 500 OFFSET 1000")).
		WithArgs("published", "politics").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-1").AddRow("p-2"))

	ids, err := s.ScanPage(ctx, Filter{Status: StatusPublished, Category: "politics"}, 1000, 500)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1", "p-2"}, ids)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE articles SET updated_at = $1, tldr = $2 WHERE id = $3")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Update(ctx, "p-1", Patch{TLDR: &TLDR{Summary: "s"}}))

	updated := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, title, excerpt, content, tldr, status, category, published_at, updated_at FROM articles WHERE id IN ($1,$2) ORDER BY id")).
		WithArgs("p-1", "p-2").
		WillReturnRows(sqlmock.NewRows(articleColumns).
			AddRow("p-1", "T", "", `"body"`, nil, "published", "politics", nil, updated))

	got, err := s.FetchByIDs(ctx, []string{"p-1", "p-2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "body", got[0].Content.Text())
	assert.Nil(t, got[0].TLDR)
	assert.Nil(t, got[0].PublishedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_QueryErrors(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	s := NewStore(conn, DialectSQLite, nil)

	mock.ExpectQuery("SELECT id FROM articles").WillReturnError(errors.New("connection reset"))
	_, err = s.ScanPage(context.Background(), Filter{}, 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	mock.ExpectExec("UPDATE articles").WillReturnResult(sqlmock.NewResult(0, 0))
	err = s.Update(context.Background(), "gone", Patch{TLDR: &TLDR{}})
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}
