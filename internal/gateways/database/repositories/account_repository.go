package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/vmq/internal/domain/accounts"
	"github.com/ellavondegurechaff/vmq/internal/domain/logger"
	"github.com/ellavondegurechaff/vmq/internal/gateways/database/models"
	"github.com/ellavondegurechaff/vmq/pool/config"
	"github.com/ellavondegurechaff/vmq/pool/database"
)

const accountEntity = "account"

type AccountRepositoryOptions struct {
	QueryTimeout    time.Duration
	AllocateTimeout time.Duration
	BatchTimeout    time.Duration
	ChunkSize       int
}

type accountRepository struct {
	db   *bun.DB
	tx   *database.TransactionManager
	opts AccountRepositoryOptions
}

var _ accounts.Repository = &accountRepository{}

func NewAccountRepository(db *bun.DB, opts AccountRepositoryOptions) *accountRepository {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = config.DefaultQueryTimeout
	}
	if opts.AllocateTimeout <= 0 {
		opts.AllocateTimeout = config.AllocateTimeout
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = config.BatchQueryTimeout
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = config.DefaultInsertChunkSize
	}
	return &accountRepository{
		db:   db,
		tx:   database.NewTransactionManager(db),
		opts: opts,
	}
}

func (r *accountRepository) ExistingTokens(ctx context.Context, tokens []string) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.QueryTimeout)
	defer cancel()

	ql := logger.NewQueryLogger("existing_tokens", accountEntity, len(tokens))
	var existing []string
	err := r.db.NewSelect().
		Model((*models.Account)(nil)).
		Column("token").
		Where("token IN (?)", bun.In(tokens)).
		Scan(ctx, &existing)
	ql.Log(err, int64(len(existing)))

	if err != nil {
		return nil, handleError("existing_tokens", accountEntity, err)
	}
	return existing, nil
}

// InsertTokens writes all chunks in one transaction so a failure leaves
// none of the batch behind. Tokens stored concurrently by another writer
// are skipped by ON CONFLICT and not counted.
func (r *accountRepository) InsertTokens(ctx context.Context, tokens []string, createdAt time.Time) (int, error) {
	if len(tokens) == 0 {
		return 0, nil
	}

	rows := make([]*models.Account, 0, len(tokens))
	for _, t := range tokens {
		rows = append(rows, &models.Account{
			Token:     t,
			Status:    models.StatusUnused,
			CreatedAt: createdAt,
		})
	}

	ql := logger.NewQueryLogger("insert_tokens", accountEntity, len(tokens))
	inserted := 0
	err := r.tx.WithTransaction(ctx, database.StandardTransactionOptions(r.opts.BatchTimeout), func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(rows); start += r.opts.ChunkSize {
			end := min(start+r.opts.ChunkSize, len(rows))
			chunk := rows[start:end]

			var ids []int64
			_, err := tx.NewInsert().
				Model(&chunk).
				Column("token", "status", "created_at").
				On("CONFLICT (token) DO NOTHING").
				Returning("id").
				Exec(ctx, &ids)
			if err != nil {
				return err
			}
			inserted += len(ids)
		}
		return nil
	})
	ql.Log(err, int64(inserted))

	if err != nil {
		// ON CONFLICT absorbs token races; a violation here means the
		// constraint no longer matches the clause
		if isUniqueViolation(err) {
			return 0, &ConflictError{Entity: accountEntity, Field: "token", Value: "batch", Err: accounts.ErrTokenConflict}
		}
		return 0, handleError("insert_tokens", accountEntity, err)
	}
	return inserted, nil
}

// Claim locks the oldest unused rows, skipping rows another claim holds,
// and marks them used in the same transaction.
func (r *accountRepository) Claim(ctx context.Context, count int, consumer string, at time.Time) ([]string, error) {
	ql := logger.NewQueryLogger("claim", accountEntity, count, consumer)

	var claimed []models.Account
	err := r.tx.WithTransaction(ctx, database.StandardTransactionOptions(r.opts.AllocateTimeout), func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(&claimed).
			Column("id", "token").
			Where("status = ?", models.StatusUnused).
			OrderExpr("id ASC").
			Limit(count).
			For("UPDATE SKIP LOCKED").
			Scan(ctx)
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]int64, len(claimed))
		for i, a := range claimed {
			ids[i] = a.ID
		}

		res, err := tx.NewUpdate().
			Model((*models.Account)(nil)).
			Set("status = ?", models.StatusUsed).
			Set("extracted_by = ?", consumer).
			Set("extracted_at = ?", at).
			Where("id IN (?)", bun.In(ids)).
			Where("status = ?", models.StatusUnused).
			Exec(ctx)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if int(affected) != len(claimed) {
			return fmt.Errorf("claimed %d of %d locked accounts", affected, len(claimed))
		}
		return nil
	})
	ql.Log(err, int64(len(claimed)))

	if err != nil {
		return nil, handleError("claim", accountEntity, err)
	}

	tokens := make([]string, len(claimed))
	for i, a := range claimed {
		tokens[i] = a.Token
	}
	return tokens, nil
}

func (r *accountRepository) Counts(ctx context.Context) (int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.QueryTimeout)
	defer cancel()

	ql := logger.NewQueryLogger("counts", accountEntity)
	var total, used int
	err := r.db.NewSelect().
		Model((*models.Account)(nil)).
		ColumnExpr("count(*)").
		ColumnExpr("count(*) FILTER (WHERE status = ?)", models.StatusUsed).
		Scan(ctx, &total, &used)
	ql.Log(err, 1)

	if err != nil {
		return 0, 0, handleError("counts", accountEntity, err)
	}
	return total, used, nil
}

// Snapshot reads every account from one repeatable-read snapshot.
func (r *accountRepository) Snapshot(ctx context.Context) ([]*models.Account, error) {
	ql := logger.NewQueryLogger("snapshot", accountEntity)

	rows := make([]*models.Account, 0)
	err := r.tx.WithTransaction(ctx, database.SnapshotTransactionOptions(r.opts.BatchTimeout), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(&rows).
			OrderExpr("id ASC").
			Scan(ctx)
	})
	ql.Log(err, int64(len(rows)))

	if err != nil {
		return nil, handleError("snapshot", accountEntity, err)
	}
	return rows, nil
}
