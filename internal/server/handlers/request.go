package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"poolorder/internal/domain/member"
	requestservice "poolorder/internal/service/request"
)

// RequestHandler handles request lifecycle and discovery endpoints.
type RequestHandler struct {
	requests *requestservice.Service
	ledger   member.Ledger
}

// NewRequestHandler creates a new request handler.
func NewRequestHandler(requests *requestservice.Service, ledger member.Ledger) *RequestHandler {
	return &RequestHandler{requests: requests, ledger: ledger}
}

// CreateRequest creates a new pooled-order request.
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	type createRequest struct {
		Item             string   `json:"item"`
		Platform         string   `json:"platform"`
		Lat              *float64 `json:"lat"`
		Lng              *float64 `json:"lng"`
		ExpiresInMinutes int      `json:"expiresInMinutes"`
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Lat == nil || req.Lng == nil {
		respondWithError(w, http.StatusBadRequest, "item, platform, lat, lng are required", nil)
		return
	}

	user := UserFromContext(r.Context())
	created, err := h.requests.Create(
		r.Context(), user,
		req.Item, req.Platform,
		*req.Lat, *req.Lng,
		time.Duration(req.ExpiresInMinutes)*time.Minute,
	)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, created)
}

// CloseRequest pulls the request's expiry forward to now.
func (h *RequestHandler) CloseRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := UserFromContext(r.Context())

	closed, err := h.requests.CloseNow(r.Context(), id, user.UID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "request": closed})
}

// DeleteRequest hard-deletes a request with its memberships and messages.
func (h *RequestHandler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := UserFromContext(r.Context())

	if err := h.requests.Delete(r.Context(), id, user.UID); err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Join adds the caller to the request's membership.
func (h *RequestHandler) Join(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := UserFromContext(r.Context())

	if err := h.ledger.Join(r.Context(), id, user.UID); err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Leave removes the caller from the request's membership.
func (h *RequestHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := UserFromContext(r.Context())

	if err := h.ledger.Leave(r.Context(), id, user.UID); err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetMembership reports whether the caller may use the request's chat.
func (h *RequestHandler) GetMembership(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := UserFromContext(r.Context())

	joined, err := h.ledger.IsMember(r.Context(), id, user.UID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"joined": joined})
}

// ListMine returns the caller's requests, newest first.
func (h *RequestHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	mine, err := h.requests.ListOwnedBy(r.Context(), user.UID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, mine)
}

// Nearby returns open requests around a point, ascending by distance.
func (h *RequestHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	latStr := r.URL.Query().Get("lat")
	lngStr := r.URL.Query().Get("lng")
	if latStr == "" || lngStr == "" {
		respondWithError(w, http.StatusBadRequest, "lat and lng are required", nil)
		return
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid latitude", err)
		return
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid longitude", err)
		return
	}

	var radiusKm float64
	if radiusStr := r.URL.Query().Get("radiusKm"); radiusStr != "" {
		radiusKm, err = strconv.ParseFloat(radiusStr, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid radius", err)
			return
		}
	}

	user := UserFromContext(r.Context())
	nearby, err := h.requests.Nearby(r.Context(), lat, lng, radiusKm, user.UID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, nearby)
}
