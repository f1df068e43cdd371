package leads

import "context"
import "time"

// Repository port (interface untuk persistence)
//
// Upsert is keyed by the lead's normalized email: when a row with that email
// already exists its name/flag/attribution fields are updated in place and the
// existing ID is kept. The returned status tells the caller which path ran.
type Repository interface {
	Upsert(ctx context.Context, l *Lead) (UpsertStatus, error)

	// CountCreatedSince reports how many leads were created from the given
	// origin IP at or after the cutoff. Feeds the analysis rate limit.
	CountCreatedSince(ctx context.Context, ip string, since time.Time) (int, error)

	// RecordAnalysis marks the lead with the given email as having a finished
	// analysis with the given violation count.
	RecordAnalysis(ctx context.Context, email string, violations int) error
}
