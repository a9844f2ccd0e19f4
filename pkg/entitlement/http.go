package entitlement

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Routes mounts the internal entitlement surface consumed by the UI
// layer. This is not a public wire protocol; the ingress keeps
// /internal off the public listener.
func (s *Service) Routes(r chi.Router) {
	r.Get("/users/{userID}/entitlement", s.handlePlanDisplay)
	r.Get("/users/{userID}/can-create", s.handleCanCreate)
	r.Post("/users/{userID}/consume", s.handleConsume)
}

func (s *Service) handlePlanDisplay(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	view := s.CurrentPlanDisplay(r.Context(), userID)
	writeJSON(w, http.StatusOK, view)
}

func (s *Service) handleCanCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"allowed": s.CanCreateMaterial(r.Context(), userID),
	})
}

func (s *Service) handleConsume(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	err := s.ConsumeOne(r.Context(), userID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"consumed":  true,
			"remaining": s.Remaining(r.Context(), userID),
		})
	case errors.Is(err, ErrQuotaExceeded):
		writeJSON(w, http.StatusConflict, map[string]any{
			"consumed": false,
			"error":    "quota_exceeded",
		})
	default:
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"consumed": false,
			"error":    "store_unavailable",
		})
	}
}

func parseUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return uuid.Nil, false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
