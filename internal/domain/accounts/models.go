package accounts

import "time"

type Status string

const (
	StatusUnused Status = "unused"
	StatusUsed   Status = "used"
)

// AddResult counts one ingestion batch. Skipped covers both in-batch
// duplicates and tokens that were already stored.
type AddResult struct {
	Inserted int `json:"inserted_count"`
	Skipped  int `json:"skipped_count"`
}

type Stats struct {
	Total  int `json:"total"`
	Used   int `json:"used"`
	Unused int `json:"unused"`
}

// Allocation is the set of tokens handed to one consumer, oldest first.
type Allocation struct {
	Tokens    []string  `json:"tokens"`
	Consumer  string    `json:"consumer"`
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}

type Record struct {
	ID          int64      `json:"id"`
	Token       string     `json:"token"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ExtractedBy *string    `json:"extracted_by"`
	ExtractedAt *time.Time `json:"extracted_at"`
}

type Export struct {
	Total   int      `json:"total"`
	Records []Record `json:"records"`
}
