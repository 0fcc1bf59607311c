// Package store provides the SQLite-backed local cache for timelines and
// notifications.
//
// Every table is partitioned by account scope; nothing in one scope can see
// or touch another.
//
// # Tables
//
//   - timeline_entries: ordered log of rows, a status reference or a gap placeholder
//   - statuses: denormalized status snapshots, server fields plus local overlay
//   - authors: denormalized authors, shared and garbage-collected by reference
//   - notifications, reports: cached notification list
//   - watermarks: notification read positions
//
// # Ordering
//
// Row ids are remote decimal strings. SQL ordering mirrors ids.Compare:
// ORDER BY length(id), id. Never compare ids with a bare < in SQL.
//
// # Merge Semantics
//
// Status upserts replace server-owned columns only. The overlay columns
// (expanded, content_showing, content_collapsed) are written on first insert
// and afterwards only by the explicit Set* mutators.
//
// # Writers
//
// The store does not serialize writers itself; the sync engines hold one
// writer per account. Tx runs a group of operations atomically, and Watch
// observers are woken after each committed write.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// The schema is managed by goose migrations embedded in the binary.
package store
