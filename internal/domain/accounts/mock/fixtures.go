package mock

import (
	"time"

	"github.com/ellavondegurechaff/vmq/internal/gateways/database/models"
)

var (
	Bot1      = "bot1"
	CreatedAt = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	ClaimedAt = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	Accounts = []*models.Account{
		{
			ID:          1,
			Token:       "a",
			Status:      models.StatusUsed,
			CreatedAt:   CreatedAt,
			ExtractedBy: &Bot1,
			ExtractedAt: &ClaimedAt,
		},
		{
			ID:        2,
			Token:     "b",
			Status:    models.StatusUnused,
			CreatedAt: CreatedAt,
		},
	}
)
