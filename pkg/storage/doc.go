// Package storage selects and opens the durable backend behind the
// workspace manager's write-behind persistence.
//
// # Backends
//
//	memory      - in-process maps, lost on restart (default)
//	filesystem  - one JSON file per record under a root directory
//	postgres    - PostgreSQL tables with optional read replicas
//	redis       - Redis hashes with set indexes
//
// Every backend implements workspace.Repository and keeps the record with
// the highest revision when writes arrive out of order.
//
// Usage:
//
//	opened, err := storage.Open(ctx, cfg.Storage, logger)
//	if err != nil {
//		return err
//	}
//	defer opened.Close()
//	manager := workspace.NewManager(store, workspace.WithPersistence(opened.Repository, outbox))
package storage
