package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ellavondegurechaff/vmq/internal/domain/accounts"
	"github.com/ellavondegurechaff/vmq/pool/config"
	"github.com/ellavondegurechaff/vmq/pool/logger"
)

// Adder is the ingestion half of accounts.Service.
type Adder interface {
	Add(ctx context.Context, candidates []string) (accounts.AddResult, error)
}

type Result struct {
	Read     int
	Inserted int
	Skipped  int
	Batches  int
}

func (r *Result) add(res accounts.AddResult) {
	r.Inserted += res.Inserted
	r.Skipped += res.Skipped
	r.Batches++
}

// Importer feeds legacy tokens through the normal ingestion path in
// batches, so the usual trimming and dedup rules apply.
type Importer struct {
	adder     Adder
	batchSize int
}

func New(adder Adder, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = config.DefaultImportBatchSize
	}
	return &Importer{adder: adder, batchSize: batchSize}
}

// Import adds tokens batch by batch. Batches already stored stay stored
// when a later batch fails; the returned Result counts them.
func (im *Importer) Import(ctx context.Context, tokens []string) (Result, error) {
	res := Result{Read: len(tokens)}
	start := time.Now()

	for from := 0; from < len(tokens); from += im.batchSize {
		to := min(from+im.batchSize, len(tokens))
		batch := tokens[from:to]

		added, err := im.adder.Add(ctx, batch)
		switch {
		case errors.Is(err, accounts.ErrNoValidTokens):
			// a batch of blanks is nothing to import, not a failure
			res.Batches++
			continue
		case err != nil:
			return res, fmt.Errorf("batch %d (%d-%d): %w", res.Batches+1, from, to-1, err)
		}
		res.add(added)

		slog.Debug("Import batch stored",
			slog.String("type", "job"),
			slog.Int("batch", res.Batches),
			slog.Int("inserted", added.Inserted),
			slog.Int("skipped", added.Skipped))
	}

	slog.Info("Legacy import finished",
		slog.String("type", "job"),
		slog.Int("read", res.Read),
		slog.Int("inserted", res.Inserted),
		slog.Int("skipped", res.Skipped),
		slog.Int("batches", res.Batches),
		logger.Since(start))
	return res, nil
}
