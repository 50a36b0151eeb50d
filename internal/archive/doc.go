// Package archive records Means to an End traffic to PostgreSQL/TimescaleDB.
//
// The archive is write-only: sessions report applied inserts and answered
// queries, which are buffered and written in batches to two append-only tables:
//   - price_observations (one row per insert)
//   - mean_queries (one row per query, with the mean that was returned)
//
// Recording never blocks a session. When the buffer is full, events are dropped
// and counted.
package archive
