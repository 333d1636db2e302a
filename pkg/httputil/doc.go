// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error
// responses, parameter parsing, caller identification and common HTTP
// middleware.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, workspace)
//	httputil.WriteCreated(w, invite)
//
// Error responses:
//
//	httputil.WriteErrorCode(w, http.StatusNotFound, "not_found", err.Error())
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteForbidden(w, "Insufficient permissions")
//	httputil.WriteInternalError(w) // never echoes the cause
//
// # Request Parsing
//
//	var req CreateWorkspaceRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//	limit, err := httputil.ParseQueryInt(r, "limit", 20)
//
// # Caller Identity
//
// The service sits behind a gateway that authenticates users and sets
// X-User-ID and X-User-Email. ActorMiddleware stores them in the context
// and RequireActor rejects anonymous requests with 401.
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.ActorMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
package httputil
