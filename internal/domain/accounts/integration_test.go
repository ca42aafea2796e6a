package accounts_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ellavondegurechaff/vmq/internal/domain/accounts"
	"github.com/ellavondegurechaff/vmq/internal/gateways/database/repositories"
	"github.com/ellavondegurechaff/vmq/pool/database"
)

// newStoreService connects to TEST_POSTGRES_DSN and returns a service over
// an empty accounts table.
func newStoreService(t *testing.T) accounts.Service {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	db, err := database.NewFromDSN(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.InitializeSchema(ctx))
	require.NoError(t, db.Truncate(ctx))

	repo := repositories.NewAccountRepository(db.BunDB(), repositories.AccountRepositoryOptions{ChunkSize: 3})
	return accounts.NewService(repo, accounts.Options{})
}

func TestPool_scenario(t *testing.T) {
	svc := newStoreService(t)
	ctx := context.Background()

	added, err := svc.Add(ctx, []string{"a", " a ", "b", "a"})
	require.NoError(t, err)
	assert.Equal(t, accounts.AddResult{Inserted: 2, Skipped: 2}, added)

	first, err := svc.Allocate(ctx, 1, "bot1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, first.Tokens)
	assert.Equal(t, "bot1", first.Consumer)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, accounts.Stats{Total: 2, Used: 1, Unused: 1}, stats)

	second, err := svc.Allocate(ctx, 5, "bot2")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, second.Tokens)
	assert.Equal(t, 1, second.Count)

	_, err = svc.Allocate(ctx, 1, "bot3")
	assert.ErrorIs(t, err, accounts.ErrNoneAvailable)

	export, err := svc.Export(ctx)
	require.NoError(t, err)
	require.Len(t, export.Records, 2)
	assert.Equal(t, "a", export.Records[0].Token)
	assert.Equal(t, accounts.StatusUsed, export.Records[0].Status)
	require.NotNil(t, export.Records[0].ExtractedBy)
	assert.Equal(t, "bot1", *export.Records[0].ExtractedBy)
	require.NotNil(t, export.Records[1].ExtractedBy)
	assert.Equal(t, "bot2", *export.Records[1].ExtractedBy)
}

func TestPool_addIsIdempotent(t *testing.T) {
	svc := newStoreService(t)
	ctx := context.Background()

	batch := []string{"x1", "x2", "", "x3", "x1", "x4", "x5"}

	first, err := svc.Add(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Inserted)
	assert.Equal(t, len(batch)-1, first.Inserted+first.Skipped)

	second, err := svc.Add(ctx, batch)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, len(batch)-1, second.Skipped)
}

func TestPool_concurrentAddsStoreEachTokenOnce(t *testing.T) {
	svc := newStoreService(t)
	ctx := context.Background()

	batch := make([]string, 50)
	for i := range batch {
		batch[i] = fmt.Sprintf("shared-%02d", i)
	}

	var (
		mu       sync.Mutex
		inserted int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			res, err := svc.Add(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			inserted += res.Inserted
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, len(batch), inserted)
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(batch), stats.Total)
}

func TestPool_concurrentAllocationsAreDisjoint(t *testing.T) {
	svc := newStoreService(t)
	ctx := context.Background()

	const n = 40
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%03d", i)
	}
	_, err := svc.Add(ctx, tokens)
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		got  []string
		none int
	)
	g, gctx := errgroup.WithContext(ctx)
	// more callers than accounts: the surplus must see an empty pool
	for i := 0; i < n+10; i++ {
		consumer := fmt.Sprintf("worker-%d", i)
		g.Go(func() error {
			alloc, err := svc.Allocate(gctx, 1, consumer)
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, accounts.ErrNoneAvailable) {
				none++
				return nil
			}
			if err != nil {
				return err
			}
			got = append(got, alloc.Tokens...)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Strings(got)
	assert.Equal(t, tokens, got)
	assert.Equal(t, 10, none)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, accounts.Stats{Total: n, Used: n, Unused: 0}, stats)
}

func TestPool_statsTrackAllocations(t *testing.T) {
	svc := newStoreService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, []string{"p", "q", "r"})
	require.NoError(t, err)

	before, err := svc.Stats(ctx)
	require.NoError(t, err)

	alloc, err := svc.Allocate(ctx, 2, "bot1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p", "q"}, alloc.Tokens)

	after, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Used+len(alloc.Tokens), after.Used)

	export, err := svc.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, after.Total, export.Total)
	for i := 1; i < len(export.Records); i++ {
		assert.Less(t, export.Records[i-1].ID, export.Records[i].ID)
	}
}
