package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ellavondegurechaff/vmq/internal/gateways/database/models"
	"github.com/ellavondegurechaff/vmq/pool/config"
)

// ErrTokenTooLong rejects tokens the store column cannot hold.
var ErrTokenTooLong = fmt.Errorf("account exceeds %d characters", config.MaxTokenLength)

//go:generate mockgen -source=services.go -destination=../../../backend/handlers/mock/account_service.go -package=mock

type Service interface {
	Add(ctx context.Context, candidates []string) (AddResult, error)
	Allocate(ctx context.Context, count int, consumer string) (Allocation, error)
	Stats(ctx context.Context) (Stats, error)
	Export(ctx context.Context) (Export, error)
}

type Options struct {
	Now func() time.Time
}

type service struct {
	repository Repository
	now        func() time.Time
}

func NewService(repository Repository, opts Options) *service {
	s := &service{
		repository: repository,
		now:        opts.Now,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Add stores the new tokens of a batch. Entries are trimmed, blanks are
// dropped and repeats collapse to their first occurrence before the store
// is consulted.
func (s *service) Add(ctx context.Context, candidates []string) (AddResult, error) {
	tokens, nonEmpty := cleanTokens(candidates)
	if len(tokens) == 0 {
		return AddResult{}, &ValidationError{Field: "accounts", Err: ErrNoValidTokens}
	}
	for _, t := range tokens {
		if utf8.RuneCountInString(t) > config.MaxTokenLength {
			return AddResult{}, &ValidationError{Field: "accounts", Err: ErrTokenTooLong}
		}
	}

	// tokens stored by a concurrent batch after the lookup are skipped by
	// the insert's ON CONFLICT clause and counted as skipped here
	inserted, err := s.insertMissing(ctx, tokens)
	if err != nil {
		return AddResult{}, err
	}

	return AddResult{Inserted: inserted, Skipped: nonEmpty - inserted}, nil
}

func (s *service) insertMissing(ctx context.Context, tokens []string) (int, error) {
	existing, err := s.repository.ExistingTokens(ctx, tokens)
	if err != nil {
		return 0, fmt.Errorf("failed to look up existing accounts: %w", err)
	}

	stored := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		stored[t] = struct{}{}
	}

	missing := make([]string, 0, len(tokens)-len(stored))
	for _, t := range tokens {
		if _, ok := stored[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	inserted, err := s.repository.InsertTokens(ctx, missing, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to insert accounts: %w", err)
	}
	return inserted, nil
}

// cleanTokens returns the distinct trimmed tokens in first-seen order and
// the number of non-blank entries.
func cleanTokens(candidates []string) ([]string, int) {
	seen := make(map[string]struct{}, len(candidates))
	tokens := make([]string, 0, len(candidates))
	nonEmpty := 0

	for _, c := range candidates {
		t := strings.TrimSpace(c)
		if t == "" {
			continue
		}
		nonEmpty++
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	return tokens, nonEmpty
}

// Allocate claims up to count unused accounts for consumer. Any positive
// count is accepted: fewer than count are returned when the pool runs
// short, none at all is ErrNoneAvailable.
func (s *service) Allocate(ctx context.Context, count int, consumer string) (Allocation, error) {
	if count <= 0 {
		return Allocation{}, &ValidationError{Field: "count", Err: ErrInvalidCount}
	}

	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return Allocation{}, &ValidationError{Field: "consumer", Err: ErrInvalidConsumer}
	}
	if utf8.RuneCountInString(consumer) > config.MaxTokenLength {
		return Allocation{}, &ValidationError{
			Field: "consumer",
			Err:   fmt.Errorf("%w: longer than %d characters", ErrInvalidConsumer, config.MaxTokenLength),
		}
	}

	at := s.now()
	tokens, err := s.repository.Claim(ctx, count, consumer, at)
	if err != nil {
		return Allocation{}, fmt.Errorf("failed to claim accounts: %w", err)
	}
	if len(tokens) == 0 {
		return Allocation{}, ErrNoneAvailable
	}

	return Allocation{
		Tokens:    tokens,
		Consumer:  consumer,
		Timestamp: at,
		Count:     len(tokens),
	}, nil
}

func (s *service) Stats(ctx context.Context) (Stats, error) {
	total, used, err := s.repository.Counts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count accounts: %w", err)
	}
	return Stats{Total: total, Used: used, Unused: total - used}, nil
}

// Export dumps every account ordered by id from one snapshot.
func (s *service) Export(ctx context.Context) (Export, error) {
	rows, err := s.repository.Snapshot(ctx)
	if err != nil {
		return Export{}, fmt.Errorf("failed to export accounts: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRecord(row))
	}
	return Export{Total: len(records), Records: records}, nil
}

func toRecord(a *models.Account) Record {
	return Record{
		ID:          a.ID,
		Token:       a.Token,
		Status:      Status(a.Status),
		CreatedAt:   a.CreatedAt,
		ExtractedBy: a.ExtractedBy,
		ExtractedAt: a.ExtractedAt,
	}
}
