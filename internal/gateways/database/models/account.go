package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	StatusUnused = "unused"
	StatusUsed   = "used"
)

// Account is a pooled token. Claim fields are set together, exactly once.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID          int64      `bun:"id,pk,autoincrement"`
	Token       string     `bun:"token,notnull,unique,type:varchar(255)"`
	Status      string     `bun:"status,notnull,type:varchar(16),default:'unused'"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	ExtractedBy *string    `bun:"extracted_by,type:varchar(255)"`
	ExtractedAt *time.Time `bun:"extracted_at"`
}

func (a *Account) IsUsed() bool {
	return a.Status == StatusUsed
}
