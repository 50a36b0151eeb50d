// Package database provides PostgreSQL/TimescaleDB connection pool management.
//
// The only consumer is the traffic archive, which writes protocol sessions to
// append-only tables. Nothing is ever read back by the protocol servers.
package database
