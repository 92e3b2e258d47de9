package token

import (
	"time"

	"github.com/google/uuid"
)

// PurgePlan selects the tokens a cleanup pass may delete: those already past
// expiry, and consumed ones whose consumption is older than retention.
func PurgePlan(now time.Time, retention time.Duration, snapshot []*Token) []uuid.UUID {
	cutoff := now.Add(-retention)

	ids := make([]uuid.UUID, 0, len(snapshot))
	for _, t := range snapshot {
		if t == nil {
			continue
		}
		if IsStale(t, now, cutoff) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func IsStale(t *Token, now, consumedBefore time.Time) bool {
	if t.ExpiresAt.Before(now) {
		return true
	}
	return t.ConsumedAt != nil && t.ConsumedAt.Before(consumedBefore)
}
