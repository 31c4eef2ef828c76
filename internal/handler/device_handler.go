// internal/handler/device_handler.go
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/wellpath/wellpath-backend/internal/model"
	"github.com/wellpath/wellpath-backend/internal/repository"
)

// DeviceHandler manages device-token registration for the recipient directory.
type DeviceHandler struct {
	Repo repository.DeviceTokenRepositoryInterface
}

func NewDeviceHandler(repo repository.DeviceTokenRepositoryInterface) *DeviceHandler {
	return &DeviceHandler{Repo: repo}
}

// RegisterHandler upserts a push token for a user's device
func (h *DeviceHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID   int    `json:"user_id"`
		Platform string `json:"platform"`
		Token    string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if payload.Token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	t := &model.DeviceToken{
		UserID:   payload.UserID,
		Platform: payload.Platform,
		Token:    payload.Token,
	}
	if err := h.Repo.Register(t); err != nil {
		http.Error(w, "failed to register device: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

// DeactivateHandler retires a token so it is no longer a campaign recipient
func (h *DeviceHandler) DeactivateHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	if err := h.Repo.Deactivate(token); err != nil {
		http.Error(w, "failed to deactivate device: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
