package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/ellavondegurechaff/vmq/internal/domain/accounts"
	"github.com/ellavondegurechaff/vmq/pool/config"
	"github.com/ellavondegurechaff/vmq/pool/logger"
)

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	createStagingSQL = `CREATE TEMP TABLE tmp_accounts (token varchar(255) NOT NULL, ord bigint NOT NULL) ON COMMIT DROP`

	// first occurrence wins so ids follow input order
	mergeStagingSQL = `INSERT INTO accounts (token, status, created_at)
SELECT token, 'unused', $1 FROM (
	SELECT DISTINCT ON (token) token, ord FROM tmp_accounts ORDER BY token, ord
) d
ORDER BY ord
ON CONFLICT (token) DO NOTHING`
)

// CopyLoad bulk-loads tokens with COPY into a staging table and merges
// them into accounts in one transaction. It applies the same cleaning as
// ingestion and reports inserted and skipped the same way.
func CopyLoad(ctx context.Context, db TxBeginner, tokens []string, createdAt time.Time) (Result, error) {
	res := Result{Read: len(tokens)}

	rows := make([][]any, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if utf8.RuneCountInString(t) > config.MaxTokenLength {
			return res, &accounts.ValidationError{Field: "accounts", Err: accounts.ErrTokenTooLong}
		}
		rows = append(rows, []any{t, int64(len(rows))})
	}
	if len(rows) == 0 {
		return res, &accounts.ValidationError{Field: "accounts", Err: accounts.ErrNoValidTokens}
	}

	ctx, cancel := context.WithTimeout(ctx, config.BatchQueryTimeout)
	defer cancel()

	start := time.Now()
	tx, err := db.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to begin copy transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, createStagingSQL); err != nil {
		return res, fmt.Errorf("failed to create staging table: %w", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"tmp_accounts"}, []string{"token", "ord"}, pgx.CopyFromRows(rows)); err != nil {
		return res, fmt.Errorf("copy to staging failed: %w", err)
	}

	tag, err := tx.Exec(ctx, mergeStagingSQL, createdAt)
	if err != nil {
		return res, fmt.Errorf("failed to merge staging rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("failed to commit copy: %w", err)
	}

	res.Inserted = int(tag.RowsAffected())
	res.Skipped = len(rows) - res.Inserted
	res.Batches = 1

	slog.Info("Copy load finished",
		slog.String("type", "db"),
		slog.Int("rows", len(rows)),
		slog.Int("inserted", res.Inserted),
		slog.Int("skipped", res.Skipped),
		logger.Since(start))
	return res, nil
}
