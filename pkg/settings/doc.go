// Package settings manages per-workspace settings on top of the workspace
// manager and the key router.
//
// Invite links carry an invite as query parameters on a configured base URL:
//
//	https://app.example.com/invite?invite=<id>&workspace=<id>&email=<email>&role=<role>
//
// Only invite is required to accept a link. When workspace is present it
// must match the invite's workspace.
//
// Settings records are created with defaults on first access. Changing
// notification preferences or API key routing requires
// workspace.settings.manage. Routing a provider through the workspace
// default key requires either an installed workspace key or personal
// fallback.
package settings
