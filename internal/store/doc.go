// Package store provides the Server's audit trail persistence using
// modernc.org/sqlite (pure Go, cgo-free).
//
// This is deliberately the only durable storage in the repository.
// currentState, startupState, and workloadStates live entirely in memory
// (state.Manager, workloadstate.Aggregator) and do not survive a restart;
// the audit log is a read path for operators, not part of reconciliation.
//
// SQLite runs with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//
// Use NewSQLiteStore(path, logger) to open a database, creating its
// schema if absent.
package store
