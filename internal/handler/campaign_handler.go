// internal/handler/campaign_handler.go
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	appErrors "github.com/wellpath/wellpath-backend/internal/errors"
	"github.com/wellpath/wellpath-backend/internal/service"
)

// CampaignHandler holds the dependencies for campaign-related HTTP handlers
type CampaignHandler struct {
	Service *service.CampaignService
}

func NewCampaignHandler(svc *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{Service: svc}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// CreateCampaignHandler handles creating a new campaign
func (h *CampaignHandler) CreateCampaignHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title       string `json:"title"`
		Body        string `json:"body"`
		ImageURL    string `json:"image_url"`
		DeepLinkURL string `json:"deep_link_url"`
		IsActive    bool   `json:"is_active"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if payload.Title == "" || payload.Body == "" {
		http.Error(w, "title and body are required", http.StatusBadRequest)
		return
	}

	campaign, err := h.Service.CreateCampaign(service.CreateCampaignInput{
		Title:       payload.Title,
		Body:        payload.Body,
		ImageURL:    payload.ImageURL,
		DeepLinkURL: payload.DeepLinkURL,
		IsActive:    payload.IsActive,
	})
	if err != nil {
		http.Error(w, "failed to create campaign: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, campaign)
}

// ListCampaignsHandler returns a paginated list of campaigns
func (h *CampaignHandler) ListCampaignsHandler(w http.ResponseWriter, r *http.Request) {
	page := 1
	pageSize := 20

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && ps > 0 {
		pageSize = ps
	}
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := h.Service.ListCampaigns(page, pageSize, status)
	if err != nil {
		http.Error(w, "failed to fetch campaigns: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination,
	})
}

// GetCampaignHandler returns a single campaign with its delivery progress
func (h *CampaignHandler) GetCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	campaign, err := h.Service.GetCampaign(id)
	if err != nil {
		var notFound *appErrors.ErrCampaignNotFound
		if errors.As(err, &notFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "failed to fetch campaign: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"campaign": campaign,
		"progress": service.ProgressFor(campaign),
	})
}

// SendCampaignHandler requeues a campaign for delivery
func (h *CampaignHandler) SendCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	if err := h.Service.TriggerSend(id); err != nil {
		var notFound *appErrors.ErrCampaignNotFound
		var inactive *appErrors.ErrCampaignInactive
		switch {
		case errors.As(err, &notFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.As(err, &inactive):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, "failed to trigger send: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"campaign_id": id,
		"status":      "queued",
	})
}
