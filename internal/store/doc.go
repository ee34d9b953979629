// Package store keeps a SQLite history of classification runs.
//
// Each invocation of the text or image pipeline inserts a run row, upserts
// per-item results as checkpoints arrive, and finalizes the run with its
// summary counts. The database lives at <state_dir>/history.db and is opened
// in WAL mode with a busy timeout so a history listing can read while a batch
// writes.
package store
