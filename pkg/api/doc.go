// Package api exposes the workspace services over HTTP using gorilla/mux.
//
// # Overview
//
// The service runs behind a gateway that authenticates users and forwards
// X-User-ID and X-User-Email. Every route requires a caller.
//
// # Routes
//
// Workspaces:
//
//	POST   /workspaces                              create, caller becomes owner
//	GET    /workspaces                              caller's active workspaces
//	GET    /workspaces/{id}                         members only
//	PATCH  /workspaces/{id}                         rename
//	POST   /workspaces/{id}/archive
//
// Members and invites:
//
//	GET    /workspaces/{id}/members
//	PUT    /workspaces/{id}/members/{user_id}/role
//	DELETE /workspaces/{id}/members/{user_id}
//	POST   /workspaces/{id}/invites
//	GET    /workspaces/{id}/invites
//	POST   /invites/{invite_id}/respond             {"decision": "accept"|"reject"}
//	DELETE /invites/{invite_id}
//
// Settings and keys:
//
//	POST   /workspaces/{id}/invite-links
//	POST   /invite-links/accept                     {"link": "..."}
//	GET    /workspaces/{id}/settings
//	PUT    /workspaces/{id}/settings/notifications
//	PUT    /workspaces/{id}/settings/api-keys/{provider}
//	PUT    /workspaces/{id}/keys/{provider}         caller's own key
//	DELETE /workspaces/{id}/keys/{provider}
//
// Search:
//
//	GET    /search?q=launch&include_personal=true&limit=20
//
// # Errors
//
// Errors are JSON bodies {"error": "...", "code": "..."}:
//
//	permission_denied, not_member   403
//	not_found                       404
//	invalid_state, conflict,
//	archived                        409
//	invalid_argument,
//	email_mismatch                  400
//	internal                        500
//
// # Usage Example
//
//	server := api.NewServer(api.Services{
//		Workspaces: manager,
//		Settings:   settingsManager,
//		MemberKeys: keyRouter,
//		Search:     engine,
//	}, api.WithLogger(logger), api.WithMetrics(metrics), api.WithTracing())
//	http.ListenAndServe(":8080", server)
package api
