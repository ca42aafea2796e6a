package accounts

import (
	"context"
	"time"

	"github.com/ellavondegurechaff/vmq/internal/gateways/database/models"
)

//go:generate mockgen -source=repository.go -destination=mock/repository.go -package=mock

type Repository interface {
	// ExistingTokens returns the subset of tokens already stored.
	ExistingTokens(ctx context.Context, tokens []string) ([]string, error)
	// InsertTokens stores tokens as unused in one transaction and returns
	// how many rows were actually inserted.
	InsertTokens(ctx context.Context, tokens []string, createdAt time.Time) (int, error)
	// Claim marks up to count unused accounts as used by consumer and
	// returns their tokens ordered by id. An empty result is not an error.
	Claim(ctx context.Context, count int, consumer string, at time.Time) ([]string, error)
	Counts(ctx context.Context) (total int, used int, err error)
	Snapshot(ctx context.Context) ([]*models.Account, error)
}
