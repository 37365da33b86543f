package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteAndSelect(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Execute(ctx, `CREATE TABLE notes (id INTEGER PRIMARY KEY, title TEXT, body BLOB)`)
	require.NoError(t, err)

	res, err := s.Execute(ctx, `INSERT INTO notes (title, body) VALUES (?, ?)`, "first", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, int64(1), res.LastInsertID)

	rows, err := s.Select(ctx, `SELECT id, title, body FROM notes WHERE title = ?`, "first")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "first", rows[0]["title"])
	assert.Equal(t, "hello", rows[0]["body"])
}

func TestSelect_NoRows(t *testing.T) {
	s := createTestStore(t)

	rows, err := s.Select(context.Background(), `SELECT * FROM recent_documents`)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestExecute_InvalidSQL(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Execute(context.Background(), `INSERT INTO missing VALUES (1)`)
	assert.Error(t, err)
}

func TestRecent_TouchAndList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, s.TouchRecent(ctx, "/docs/a.txt", base))
	require.NoError(t, s.TouchRecent(ctx, "/docs/b.txt", base.Add(time.Second)))
	require.NoError(t, s.TouchRecent(ctx, "/docs/a.txt", base.Add(2*time.Second)))

	docs, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, RecentDocument{Path: "/docs/a.txt", OpenedAt: base.Add(2 * time.Second).UnixMilli(), OpenCount: 2}, docs[0])
	assert.Equal(t, RecentDocument{Path: "/docs/b.txt", OpenedAt: base.Add(time.Second).UnixMilli(), OpenCount: 1}, docs[1])

	limited, err := s.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "/docs/a.txt", limited[0].Path)
}

func TestRecent_NormalizesKeys(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	decomposed := "/docs/cafe\u0301.md"
	composed := "/docs/caf\u00e9.md"

	require.NoError(t, s.TouchRecent(ctx, decomposed, now))
	require.NoError(t, s.TouchRecent(ctx, composed, now.Add(time.Second)))

	docs, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, composed, docs[0].Path, "display path follows the latest touch")
	assert.Equal(t, int64(2), docs[0].OpenCount)

	require.NoError(t, s.ForgetRecent(ctx, decomposed))
	docs, err = s.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRecent_EmptyPath(t *testing.T) {
	s := createTestStore(t)
	assert.Error(t, s.TouchRecent(context.Background(), "", time.Now()))
}
