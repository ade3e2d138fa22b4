// Package store persists matched jobs and, for the durable ledger backend,
// the seen-fingerprint set.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no job has the requested id.
var ErrNotFound = errors.New("job not found")

// DefaultRecentLimit bounds Recent when the caller passes a non-positive limit.
const DefaultRecentLimit = 50

// MaxRecentLimit caps any Recent call.
const MaxRecentLimit = 500

func recentLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return min(limit, MaxRecentLimit)
}

func millisPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
