package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/workspaces/pkg/httputil"
	"github.com/platinummonkey/workspaces/pkg/search"
)

// SearchHandlers handles cross-workspace search requests
type SearchHandlers struct {
	searcher Searcher
}

// NewSearchHandlers creates a new SearchHandlers
func NewSearchHandlers(searcher Searcher) *SearchHandlers {
	return &SearchHandlers{searcher: searcher}
}

// RegisterRoutes registers search routes
func (h *SearchHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/search", h.Search).Methods(http.MethodGet)
}

// Search handles GET /search?q=...&include_personal=true&limit=20
func (h *SearchHandlers) Search(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}

	includePersonal, err := httputil.ParseQueryBool(r, "include_personal", true)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.searcher.SearchAcrossWorkspaces(r.Context(), search.Request{
		ActorUserID:     actor.UserID,
		Query:           r.URL.Query().Get("q"),
		IncludePersonal: includePersonal,
		Limit:           limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}
