package archive

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS price_observations (
	session_id  UUID    NOT NULL,
	ts          INTEGER NOT NULL,
	price       INTEGER NOT NULL,
	received_at BIGINT  NOT NULL
);
CREATE INDEX IF NOT EXISTS price_observations_session_idx
	ON price_observations (session_id, ts);

CREATE TABLE IF NOT EXISTS mean_queries (
	session_id  UUID    NOT NULL,
	min_time    INTEGER NOT NULL,
	max_time    INTEGER NOT NULL,
	mean        INTEGER NOT NULL,
	received_at BIGINT  NOT NULL
);
CREATE INDEX IF NOT EXISTS mean_queries_session_idx
	ON mean_queries (session_id);
`

const (
	insertObservationSQL = `INSERT INTO price_observations (session_id, ts, price, received_at) VALUES ($1, $2, $3, $4)`
	insertQuerySQL       = `INSERT INTO mean_queries (session_id, min_time, max_time, mean, received_at) VALUES ($1, $2, $3, $4, $5)`
)

// EnsureSchema creates the archive tables if they do not exist.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create archive schema: %w", err)
	}
	return nil
}
