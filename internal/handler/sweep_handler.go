// internal/handler/sweep_handler.go
package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/wellpath/wellpath-backend/internal/service"
)

// SweepHandler exposes the stall-recovery sweep as a protected endpoint for
// external cron triggers and manual resumes.
type SweepHandler struct {
	Sweeper *service.Sweeper
	Secret  string
	DevMode bool
}

func NewSweepHandler(sweeper *service.Sweeper, secret string, devMode bool) *SweepHandler {
	return &SweepHandler{Sweeper: sweeper, Secret: secret, DevMode: devMode}
}

func (h *SweepHandler) authorized(r *http.Request) bool {
	if h.Secret == "" {
		// Running without a secret is only acceptable in development.
		return h.DevMode
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.Secret)) == 1
}

// TriggerHandler runs one sweep pass and reports the resumed campaigns
func (h *SweepHandler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := h.Sweeper.Sweep(r.Context())
	if err != nil {
		http.Error(w, "sweep failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
