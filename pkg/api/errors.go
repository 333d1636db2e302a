package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/workspaces/pkg/httputil"
	"github.com/platinummonkey/workspaces/pkg/observability"
	"github.com/platinummonkey/workspaces/pkg/rbac"
	"github.com/platinummonkey/workspaces/pkg/workspace"
)

// errorStatus maps a domain error to its HTTP status and code
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, rbac.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, workspace.ErrNotMember):
		return http.StatusForbidden, "not_member"
	case errors.Is(err, workspace.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, workspace.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, workspace.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, workspace.ErrArchived):
		return http.StatusConflict, "archived"
	case errors.Is(err, workspace.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, workspace.ErrEmailMismatch):
		return http.StatusBadRequest, "email_mismatch"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError writes err with its mapped status. Unmapped errors are logged
// and the client sees a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		observability.FromContext(r.Context(), nil).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("Request failed")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteErrorCode(w, status, code, err.Error())
}

// writeJSON writes data, logging encode failures that happen after the
// status line is sent
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := httputil.WriteJSON(w, status, data); err != nil {
		observability.FromContext(r.Context(), nil).WithError(err).Warn("Failed to encode response")
	}
}
