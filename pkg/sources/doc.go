// Package sources implements the read-only data sources behind search:
// activity log, knowledge store and workflow engine.
//
// The Memory* types keep everything in process and back development
// servers and tests. SQLActivityLog reads an activity_events table through
// database/sql and works with PostgreSQL (lib/pq) and SQLite.
package sources
