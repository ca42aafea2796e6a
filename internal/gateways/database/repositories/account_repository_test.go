package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/ellavondegurechaff/vmq/internal/domain/accounts"
)

var claimTime = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func newMockRepository(t *testing.T, opts AccountRepositoryOptions) (*accountRepository, sqlmock.Sqlmock) {
	t.Helper()

	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	return NewAccountRepository(db, opts), mock
}

func TestAccountRepository_ExistingTokens(t *testing.T) {
	repo, mock := newMockRepository(t, AccountRepositoryOptions{})

	mock.ExpectQuery(`SELECT "a"."token" FROM "accounts" AS "a" WHERE \(token IN \(`).
		WillReturnRows(sqlmock.NewRows([]string{"token"}).AddRow("b"))

	got, err := repo.ExistingTokens(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got)
}

func TestAccountRepository_ExistingTokens_empty(t *testing.T) {
	repo, _ := newMockRepository(t, AccountRepositoryOptions{})

	got, err := repo.ExistingTokens(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAccountRepository_InsertTokens(t *testing.T) {
	repo, mock := newMockRepository(t, AccountRepositoryOptions{ChunkSize: 2})

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "accounts" .*ON CONFLICT \(token\) DO NOTHING RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	// second chunk: "c" was stored by a concurrent writer
	mock.ExpectQuery(`INSERT INTO "accounts" .*ON CONFLICT \(token\) DO NOTHING RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	got, err := repo.InsertTokens(context.Background(), []string{"a", "b", "c"}, claimTime)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestAccountRepository_InsertTokens_rollsBackWholeBatch(t *testing.T) {
	repo, mock := newMockRepository(t, AccountRepositoryOptions{ChunkSize: 1})

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "accounts"`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	got, err := repo.InsertTokens(context.Background(), []string{"a", "b"}, claimTime)
	require.Error(t, err)
	assert.Zero(t, got)
	assert.True(t, IsRepositoryError(err))
	assert.False(t, errors.Is(err, accounts.ErrTokenConflict))
}

func TestAccountRepository_Claim(t *testing.T) {
	repo, mock := newMockRepository(t, AccountRepositoryOptions{})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "a"."id", "a"."token" FROM "accounts" AS "a" WHERE \(status = 'unused'\) ORDER BY id ASC LIMIT 2 FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "token"}).AddRow(1, "a").AddRow(2, "b"))
	mock.ExpectExec(`UPDATE "accounts" AS "a" SET status = 'used', extracted_by = 'bot1', extracted_at = .* WHERE \(id IN \(1, ?2\)\) AND \(status = 'unused'\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	got, err := repo.Claim(context.Background(), 2, "bot1", claimTime)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestAccountRepository_Claim_emptyPool(t *testing.T) {
	repo, mock := newMockRepository(t, AccountRepositoryOptions{})

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "token"}))
	mock.ExpectCommit()

	got, err := repo.Claim(context.Background(), 1, "bot3", claimTime)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAccountRepository_Claim_lostRowsRollsBack(t *testing.T) {
	repo, mock := newMockRepository(t, AccountRepositoryOptions{})

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "token"}).AddRow(1, "a").AddRow(2, "b"))
	mock.ExpectExec(`UPDATE "accounts"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	got, err := repo.Claim(context.Background(), 2, "bot1", claimTime)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, IsRepositoryError(err))
}

func TestAccountRepository_Claim_selectFailure(t *testing.T) {
	repo, mock := newMockRepository(t, AccountRepositoryOptions{})

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	_, err := repo.Claim(context.Background(), 1, "bot1", claimTime)
	require.Error(t, err)
	assert.True(t, IsRepositoryError(err))
	assert.False(t, errors.Is(err, accounts.ErrNoneAvailable))
}

func TestAccountRepository_Counts(t *testing.T) {
	repo, mock := newMockRepository(t, AccountRepositoryOptions{})

	mock.ExpectQuery(`SELECT count\(\*\), count\(\*\) FILTER \(WHERE status = 'used'\) FROM "accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "count"}).AddRow(2, 1))

	total, used, err := repo.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, used)
}

func TestAccountRepository_Snapshot(t *testing.T) {
	repo, mock := newMockRepository(t, AccountRepositoryOptions{})

	created := claimTime.Add(-time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM "accounts" AS "a" ORDER BY id ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "token", "status", "created_at", "extracted_by", "extracted_at"}).
			AddRow(1, "a", "used", created, "bot1", claimTime).
			AddRow(2, "b", "unused", created, nil, nil))
	mock.ExpectCommit()

	got, err := repo.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1), got[0].ID)
	assert.True(t, got[0].IsUsed())
	require.NotNil(t, got[0].ExtractedBy)
	assert.Equal(t, "bot1", *got[0].ExtractedBy)
	require.NotNil(t, got[0].ExtractedAt)
	assert.True(t, got[0].ExtractedAt.Equal(claimTime))

	assert.Equal(t, "b", got[1].Token)
	assert.False(t, got[1].IsUsed())
	assert.Nil(t, got[1].ExtractedBy)
	assert.Nil(t, got[1].ExtractedAt)
}

func TestErrorHelpers(t *testing.T) {
	conflict := &ConflictError{Entity: accountEntity, Field: "token", Value: "a", Err: accounts.ErrTokenConflict}
	assert.True(t, IsConflict(conflict))
	assert.True(t, errors.Is(conflict, accounts.ErrTokenConflict))

	wrapped := handleError("claim", accountEntity, context.DeadlineExceeded)
	assert.True(t, IsRepositoryError(wrapped))
	assert.True(t, IsTimeout(wrapped))
	assert.False(t, IsNotFound(wrapped))

	assert.Nil(t, handleError("claim", accountEntity, nil))
	assert.False(t, isUniqueViolation(errors.New("plain")))
}
