package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"poolorder/internal/domain/chat"
	"poolorder/internal/domain/request"
	chatservice "poolorder/internal/service/chat"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	jsonResponse, err := json.Marshal(payload)
	if err != nil {
		log.Printf("error marshaling response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}

func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	if err != nil {
		log.Printf("%s: %v", message, err)
	}
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithDomainError maps the error taxonomy onto HTTP status codes.
// Expired (410) stays distinct from AccessDenied (403) so clients only offer
// a join action when joining would help.
func respondWithDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, request.ErrInvalidArgument):
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, request.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Request not found", nil)
	case errors.Is(err, request.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "Only the owner may do that", nil)
	case errors.Is(err, request.ErrExpired):
		respondWithError(w, http.StatusGone, "Request expired", nil)
	case errors.Is(err, chat.ErrAccessDenied):
		respondWithError(w, http.StatusForbidden, "Join required", nil)
	case errors.Is(err, chatservice.ErrRateLimited):
		respondWithError(w, http.StatusTooManyRequests, "Sending too fast", nil)
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
