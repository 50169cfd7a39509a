// Package tracks follows physical objects across uploads.
//
// Each detection is matched by IoU against the newest observation of every
// track sharing its label. Matches extend the track's history and misses
// open a new track. Tracks not seen within the inactivity window are purged.
// The resulting state is handed to a Store after every mutation.
//
// Objects whose history keeps landing in a problem zone (floor, bed
// surface) are reported as chronic problems.
//
// No SQL is allowed in this package; the SQLite store lives in
// internal/tidy/storage/sqlite.
package tracks
