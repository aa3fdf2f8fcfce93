package store

import (
	"context"

	"github.com/vovakirdan/formrelay-server/internal/record"
)

// Store persists message records. Implementations live in subpackages:
// mongo is the production document store, sqlite serves local
// development and tests.
type Store interface {
	// InsertMessage writes one record as a single document. There is no
	// retry and no idempotency key: inserting the same record twice
	// produces two documents.
	InsertMessage(ctx context.Context, rec *record.Record) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
