// internal/service/campaign_service.go
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	appErrors "github.com/wellpath/wellpath-backend/internal/errors"
	"github.com/wellpath/wellpath-backend/internal/model"
	"github.com/wellpath/wellpath-backend/internal/queue"
	"github.com/wellpath/wellpath-backend/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Queue        queue.Queue
}

// CreateCampaignInput carries the immutable campaign content.
type CreateCampaignInput struct {
	Title       string
	Body        string
	ImageURL    string
	DeepLinkURL string
	IsActive    bool
}

// CampaignProgress is the polling payload for the admin progress bar.
type CampaignProgress struct {
	ID              uuid.UUID  `json:"id"`
	SendStatus      string     `json:"send_status"`
	SendProgress    int        `json:"send_progress"`
	SendTotal       int        `json:"send_total"`
	SuccessCount    int        `json:"success_count"`
	FailureCount    int        `json:"failure_count"`
	SendErrors      []string   `json:"send_errors"`
	SendStartedAt   *time.Time `json:"send_started_at,omitempty"`
	SendCompletedAt *time.Time `json:"send_completed_at,omitempty"`
	PercentComplete int        `json:"percent_complete"`
}

// ProgressFor projects a campaign row into its polling payload.
func ProgressFor(c *model.Campaign) CampaignProgress {
	errs := c.SendErrors
	if errs == nil {
		errs = []string{}
	}
	return CampaignProgress{
		ID:              c.ID,
		SendStatus:      c.SendStatus,
		SendProgress:    c.SendProgress,
		SendTotal:       c.SendTotal,
		SuccessCount:    c.SuccessCount,
		FailureCount:    c.FailureCount,
		SendErrors:      errs,
		SendStartedAt:   c.SendStartedAt,
		SendCompletedAt: c.SendCompletedAt,
		PercentComplete: c.PercentComplete(),
	}
}

// CreateCampaign persists a campaign and, when it is active, enqueues a
// dispatch run. A failed enqueue is not fatal: the row sits in "queued" and
// the stall sweep will pick it up once it goes stale.
func (s *CampaignService) CreateCampaign(in CreateCampaignInput) (*model.Campaign, error) {
	c := &model.Campaign{
		Title:       in.Title,
		Body:        in.Body,
		ImageURL:    in.ImageURL,
		DeepLinkURL: in.DeepLinkURL,
		IsActive:    in.IsActive,
	}

	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}

	if c.IsActive {
		if err := s.Queue.Publish(queue.TopicCampaignDispatch, c.ID); err != nil {
			log.Warn().Err(err).Str("campaign_id", c.ID.String()).Msg("failed to enqueue dispatch, sweep will recover")
		}
	}

	return c, nil
}

// TriggerSend requeues a campaign for delivery. Inactive campaigns are never
// dispatched; a campaign already mid-send is left alone, the dispatcher's
// claim resolves the race either way.
func (s *CampaignService) TriggerSend(id uuid.UUID) error {
	c, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return err
	}
	if !c.IsActive {
		return appErrors.NewCampaignInactive(id)
	}

	if c.SendStatus == model.StatusIdle || c.Terminal() {
		if err := s.CampaignRepo.Requeue(id); err != nil {
			return err
		}
	}

	if err := s.Queue.Publish(queue.TopicCampaignDispatch, id); err != nil {
		log.Warn().Err(err).Str("campaign_id", id.String()).Msg("failed to enqueue dispatch, sweep will recover")
	}
	return nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaign fetches a campaign by ID
func (s *CampaignService) GetCampaign(id uuid.UUID) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(id)
}

// StartDispatchSubscriber wires the dispatcher into the dispatch topic so
// that published campaign IDs get sent in the background.
func StartDispatchSubscriber(q queue.Queue, d *Dispatcher) error {
	return q.Subscribe(queue.TopicCampaignDispatch, func(campaignID uuid.UUID) error {
		return d.Dispatch(context.Background(), campaignID)
	})
}
