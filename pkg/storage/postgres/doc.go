// Package postgres provides the durable workspace.Repository backends.
//
// Repository stores workspaces, members and invites in PostgreSQL tables
// (see Schema). Writes go to the primary connection and reads to a replica
// chosen round robin by ConnectionManager. RedisRepository stores the same
// records as Redis hashes with set indexes. Both backends refuse to replace
// a stored record with a lower revision, so replayed or reordered snapshots
// never roll data back.
package postgres
