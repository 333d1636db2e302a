// Package keys routes provider API keys for workspace operations.
//
// A Router resolves a key for (workspace, user, provider) through an ordered
// chain, stopping at the first non-empty key:
//
//  1. the external MemberKeyResolver, if configured (workspace_member)
//  2. a member key set with SetWorkspaceMemberKey (workspace_member)
//  3. the workspace default set with SetWorkspaceDefaultKey (workspace_default)
//  4. the global FallbackKeyStore (byok_fallback)
//
// ResolveWorkflowKey runs the chain for the primary user and then for the
// secondary user. The workflow owner is primary unless UseInitiatorKey is
// set.
//
// SealedKeyStore is a FallbackKeyStore backed by an age-encrypted JSON
// file. It can be kept current with Watch:
//
//	identity, err := keys.LoadIdentity("/etc/workspaces/identity.txt")
//	store, err := keys.NewSealedKeyStore("/etc/workspaces/keys.json", identity)
//	done, err := store.Watch(ctx)
//	router := keys.NewRouter(store)
package keys
