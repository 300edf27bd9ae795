// Package api serves the read-only JSON view of officials.
//
// Responses are open to any origin so that third-party sites can embed
// meeting listings.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"townhall/internal/civic"
	"townhall/internal/logging"
	"townhall/internal/store"
)

// Store is the persistence the API reads.
type Store interface {
	ListOfficials(ctx context.Context, q store.OfficialQuery) ([]civic.Official, error)
	LoadDetails(ctx context.Context, list []civic.Official, want store.Detail) error
	GetOfficial(ctx context.Context, id int64) (*civic.Official, error)
}

// Handler serves /api/officials/.
type Handler struct {
	store Store
}

// New returns an API handler reading from st.
func New(st Store) *Handler {
	return &Handler{store: st}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/officials/{$}", h.list)
	mux.HandleFunc("GET /api/officials/{id}/{$}", h.detail)
}

type listResponse struct {
	Objects []officialJSON `json:"objects"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := store.Officials()

	if raw, ok := params["without_meeting_since"]; ok {
		since, err := civic.ParseDate(raw[0])
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{"without_meeting_since must be a date formatted YYYY-MM-DD"})
			return
		}
		q = q.WithoutMeetingsSince(since)
	}
	if params.Has("through_twitter") {
		q = q.ThroughTwitter()
	}

	list, err := h.store.ListOfficials(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	extra := includes(r)
	if err := h.store.LoadDetails(r.Context(), list, store.DetailMeetings|store.DetailChannels|extra.detail()); err != nil {
		h.fail(w, r, err)
		return
	}

	resp := listResponse{Objects: make([]officialJSON, 0, len(list))}
	for _, o := range list {
		resp.Objects = append(resp.Objects, prepare(o, extra))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{"not found"})
		return
	}
	o, err := h.store.GetOfficial(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prepare(*o, includes(r)))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{"not found"})
		return
	}
	logging.FromContext(r.Context(), logging.CategoryHTTP).Error("%s %s: %v", r.Method, r.URL.Path, err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{"internal error"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
