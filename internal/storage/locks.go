package db

import (
	"context"
	"errors"
	"fmt"
)

// Advisory lock ids for jobs that must not run concurrently.
const (
	LockBackfillEmbeddings   = int64(74211)
	LockBackfillPublications = int64(74212)
	LockEnrichAbstracts      = int64(74213)
	LockGoldSet              = int64(74214)
)

// ErrLockHeld is returned when another process holds the job lock.
var ErrLockHeld = errors.New("job lock is held by another process")

// WithAdvisoryLock runs fn while holding a session advisory lock on one pooled
// connection. It returns ErrLockHeld without calling fn when the lock is taken.
func (db *DB) WithAdvisoryLock(ctx context.Context, lockID int64, fn func(ctx context.Context) error) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		return fmt.Errorf("try acquire advisory lock: %w", err)
	}

	if !acquired {
		return ErrLockHeld
	}

	defer func() {
		//nolint:errcheck,contextcheck // the lock also goes away with the session
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", lockID)
	}()

	return fn(ctx)
}
