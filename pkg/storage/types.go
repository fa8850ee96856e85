package storage

import (
	"context"
	"time"
)

// Search is one recorded search: the filters it ran with and how many
// vehicles came back.
type Search struct {
	ID         int64
	OccurredAt time.Time

	// Filters
	Year            string
	Make            string
	Model           string
	MinSafetyRating int

	ResultCount int
}

// MakeStats counts how often searches were filtered by a make.
type MakeStats struct {
	Make        string // "" groups the unfiltered searches
	SearchCount int
	ResultCount int
}

// Locker serializes writers across processes sharing one database file.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}
