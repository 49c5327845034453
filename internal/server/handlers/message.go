package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"poolorder/internal/domain/chat"
	chatservice "poolorder/internal/service/chat"
)

// MessageHandler handles the poll path of the chat channel.
type MessageHandler struct {
	chats *chatservice.Service
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(chats *chatservice.Service) *MessageHandler {
	return &MessageHandler{chats: chats}
}

// GetMessages returns one window of a request's log, oldest to newest.
// Without a cursor this is the latest window; with ?before= it pages older
// history for scroll-back.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	user := UserFromContext(r.Context())

	var before chat.Cursor
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		parsed, err := chat.ParseCursor(beforeStr)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid cursor", err)
			return
		}
		before = parsed
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = parsed
	}

	page, err := h.chats.List(r.Context(), requestID, user, before, limit)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, page)
}

// PostMessage appends a message to the request's log.
func (h *MessageHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	user := UserFromContext(r.Context())

	type sendRequest struct {
		Text string `json:"text"`
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	m, err := h.chats.Send(r.Context(), requestID, user, req.Text)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, m)
}
