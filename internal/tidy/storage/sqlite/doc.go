// Package sqlite contains the SQLite implementations of the tidy stores:
// TrackStore persists tracker snapshots and HistoryStore records completed
// analyses.
//
// All SQL for the tidy domain belongs here. The schema is owned by the
// migrations in internal/db.
package sqlite
