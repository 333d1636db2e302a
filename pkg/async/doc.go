// Package async provides safe concurrent execution primitives for background tasks.
//
// # SafeGo
//
// Run a function in a goroutine with a timeout and panic recovery:
//
//	async.SafeGo(ctx, logger, 30*time.Second, "hydrate user", func(ctx context.Context) error {
//		return manager.Hydrate(ctx, userID)
//	})
//
// # Outbox
//
// Write-behind persistence queue with ordered delivery, bounded retry and an
// observable pending count:
//
//	outbox := async.NewOutbox(async.DefaultOutboxConfig("workspaces"), logger)
//	defer outbox.Close(ctx)
//
//	err := outbox.Enqueue("upsert workspace", func(ctx context.Context) error {
//		return repo.UpsertWorkspace(ctx, record)
//	})
//	pending := outbox.Pending()
package async
