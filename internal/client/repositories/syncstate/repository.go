// Package syncstate persists the per-user sync clock: the timestamp of the
// last successfully finalized pass, used to compute incremental windows.
package syncstate

import "context"

type Repository interface {
	// LastSyncTime returns the stored timestamp, or 0 when the user has
	// never completed a pass.
	LastSyncTime(ctx context.Context, userID int64) (int64, error)

	// SetLastSyncTime stores ts. The clock is monotonic: a value smaller
	// than the stored one is ignored.
	SetLastSyncTime(ctx context.Context, userID int64, ts int64) error
}
