package db

import "time"

// Initial connection retries.
const (
	connectInitialInterval = 500 * time.Millisecond
	connectMaxInterval     = 5 * time.Second
	maxConnectionRetries   = 10
)

// Database pool default constants
const (
	defaultMaxConns          int32         = 25
	defaultMinConns          int32         = 2
	defaultMaxConnIdleTime   time.Duration = 30 * time.Minute
	defaultMaxConnLifetime   time.Duration = time.Hour
	defaultHealthCheckPeriod time.Duration = time.Minute
)

// PostgreSQL error codes mapped onto application errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const (
	migrationLockID = 1000

	vectorExtension = "vector"
)
