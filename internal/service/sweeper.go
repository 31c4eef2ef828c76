// internal/service/sweeper.go
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wellpath/wellpath-backend/internal/metrics"
	"github.com/wellpath/wellpath-backend/internal/repository"
)

// DefaultStaleThreshold is longer than any single dispatch pass should take,
// without delaying recovery by more than one sweep tick.
const DefaultStaleThreshold = 5 * time.Minute

// Sweeper resumes campaigns that were abandoned mid-send, detected by a
// non-terminal status and an updated_at older than Threshold.
type Sweeper struct {
	Campaigns  repository.CampaignRepositoryInterface
	Dispatcher *Dispatcher
	Metrics    *metrics.Metrics
	Threshold  time.Duration
}

func NewSweeper(campaigns repository.CampaignRepositoryInterface, d *Dispatcher, m *metrics.Metrics, threshold time.Duration) *Sweeper {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	return &Sweeper{
		Campaigns:  campaigns,
		Dispatcher: d,
		Metrics:    m,
		Threshold:  threshold,
	}
}

// SweepResult reports which campaigns a sweep pass attempted to resume.
type SweepResult struct {
	Resumed     int         `json:"resumed"`
	CampaignIDs []uuid.UUID `json:"campaign_ids"`
}

// Sweep requeues every stalled campaign and re-runs the dispatcher on it
// synchronously. A failure on one campaign never stops the rest of the batch.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	result := SweepResult{CampaignIDs: []uuid.UUID{}}

	inFlight, err := s.Campaigns.FindInFlight()
	if err != nil {
		return result, err
	}

	now := time.Now()
	for _, c := range inFlight {
		if now.Sub(c.UpdatedAt) < s.Threshold {
			continue
		}

		if err := s.Campaigns.Requeue(c.ID); err != nil {
			log.Error().Err(err).Str("campaign_id", c.ID.String()).Msg("failed to requeue stalled campaign")
			continue
		}

		result.Resumed++
		result.CampaignIDs = append(result.CampaignIDs, c.ID)
		s.Metrics.CampaignsResumedTotal.Inc()

		log.Warn().
			Str("campaign_id", c.ID.String()).
			Str("stalled_status", c.SendStatus).
			Time("last_update", c.UpdatedAt).
			Msg("resuming stalled campaign")

		if err := s.Dispatcher.Dispatch(ctx, c.ID); err != nil {
			// Isolate the failure: the next campaign in the batch still runs,
			// and this one stays eligible for the following sweep.
			log.Error().Err(err).Str("campaign_id", c.ID.String()).Msg("resumed dispatch failed")
		}
	}

	return result, nil
}

// Run calls Sweep on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.Sweep(ctx)
			if err != nil {
				log.Error().Err(err).Msg("sweep pass failed")
				continue
			}
			if res.Resumed > 0 {
				log.Info().Int("resumed", res.Resumed).Msg("sweep pass resumed stalled campaigns")
			}
		}
	}
}
