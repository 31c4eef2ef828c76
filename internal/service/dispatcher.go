// internal/service/dispatcher.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wellpath/wellpath-backend/internal/metrics"
	"github.com/wellpath/wellpath-backend/internal/model"
	"github.com/wellpath/wellpath-backend/internal/push"
	"github.com/wellpath/wellpath-backend/internal/repository"
)

const (
	defaultBatchSize = 10
	defaultErrorCap  = 25
)

// Dispatcher fans a single campaign out to every registered device and tracks
// progress on the campaign row as it goes.
//
// Resume semantics are at-least-once: a sweep-triggered resume re-snapshots
// the recipient set and restarts the loop from zero, so devices contacted
// before a crash may receive the push twice. There is no per-recipient
// delivery ledger.
type Dispatcher struct {
	Campaigns repository.CampaignRepositoryInterface
	Devices   repository.DeviceTokenRepositoryInterface
	Sender    push.Sender
	Metrics   *metrics.Metrics

	// BatchSize is how many recipients are attempted between progress
	// persists. ErrorCap bounds the send_errors list, keeping the most
	// recent entries.
	BatchSize int
	ErrorCap  int
}

func NewDispatcher(
	campaigns repository.CampaignRepositoryInterface,
	devices repository.DeviceTokenRepositoryInterface,
	sender push.Sender,
	m *metrics.Metrics,
) *Dispatcher {
	return &Dispatcher{
		Campaigns: campaigns,
		Devices:   devices,
		Sender:    sender,
		Metrics:   m,
		BatchSize: defaultBatchSize,
		ErrorCap:  defaultErrorCap,
	}
}

// Dispatch runs one campaign's full send. It is safe to invoke concurrently
// and repeatedly for the same campaign: only the invocation that wins the
// queued -> sending claim executes the recipient loop, every other one
// returns nil without side effects.
//
// A returned error means the attempt aborted mid-flight (store or directory
// failure) and the campaign row was left in "sending" for the recovery sweep.
// Per-device delivery failures never produce an error here.
func (d *Dispatcher) Dispatch(ctx context.Context, campaignID uuid.UUID) error {
	claimed, err := d.Campaigns.ClaimForSending(campaignID)
	if err != nil {
		return fmt.Errorf("claim campaign %s: %w", campaignID, err)
	}
	if !claimed {
		log.Debug().Str("campaign_id", campaignID.String()).Msg("campaign not claimable, skipping dispatch")
		return nil
	}

	campaign, err := d.Campaigns.GetByID(campaignID)
	if err != nil {
		return fmt.Errorf("load campaign %s: %w", campaignID, err)
	}

	tokens, err := d.Devices.ListActiveTokens()
	if err != nil {
		return fmt.Errorf("list device tokens: %w", err)
	}

	if err := d.Campaigns.BeginSend(campaignID, len(tokens)); err != nil {
		return fmt.Errorf("begin send for campaign %s: %w", campaignID, err)
	}

	start := time.Now()

	if len(tokens) == 0 {
		// Nothing to deliver is a successful send, not a failure.
		if err := d.Campaigns.Finalize(campaignID, model.StatusSent); err != nil {
			return fmt.Errorf("finalize campaign %s: %w", campaignID, err)
		}
		d.Metrics.CampaignsDispatchedTotal.WithLabelValues(model.StatusSent).Inc()
		log.Info().Str("campaign_id", campaignID.String()).Msg("campaign sent to zero recipients")
		return nil
	}

	msg := push.Message{
		Title:    campaign.Title,
		Body:     campaign.Body,
		ImageURL: campaign.ImageURL,
		Data: map[string]string{
			"source":      "wellpath-campaign",
			"campaign_id": campaignID.String(),
		},
	}
	if campaign.DeepLinkURL != "" {
		msg.Data["deep_link"] = campaign.DeepLinkURL
	}

	batchSize := d.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	errorCap := d.ErrorCap
	if errorCap <= 0 {
		errorCap = defaultErrorCap
	}

	var (
		progress   int
		success    int
		failure    int
		sendErrors []string
	)

	for _, token := range tokens {
		res := d.Sender.Send(ctx, token, msg)
		if res.Success {
			success++
			d.Metrics.PushesSentTotal.Inc()
		} else {
			failure++
			d.Metrics.PushesFailedTotal.Inc()
			entry := fmt.Sprintf("%s: %s", push.Abbrev(token), res.Error)
			if len(sendErrors) == errorCap {
				copy(sendErrors, sendErrors[1:])
				sendErrors = sendErrors[:errorCap-1]
			}
			sendErrors = append(sendErrors, entry)
		}
		progress++

		// Persisting counters every batch is what makes the send resumable:
		// a crash loses at most the in-flight batch.
		if progress%batchSize == 0 {
			if err := d.Campaigns.UpdateProgress(campaignID, progress, success, failure, sendErrors); err != nil {
				return fmt.Errorf("persist progress for campaign %s: %w", campaignID, err)
			}
		}
	}

	if err := d.Campaigns.UpdateProgress(campaignID, progress, success, failure, sendErrors); err != nil {
		return fmt.Errorf("persist progress for campaign %s: %w", campaignID, err)
	}

	status := finalStatus(success, failure)
	if err := d.Campaigns.Finalize(campaignID, status); err != nil {
		return fmt.Errorf("finalize campaign %s: %w", campaignID, err)
	}

	d.Metrics.CampaignsDispatchedTotal.WithLabelValues(status).Inc()
	d.Metrics.DispatchDurationSeconds.Observe(time.Since(start).Seconds())

	log.Info().
		Str("campaign_id", campaignID.String()).
		Str("status", status).
		Int("total", len(tokens)).
		Int("success", success).
		Int("failure", failure).
		Dur("took", time.Since(start)).
		Msg("campaign dispatch finished")

	return nil
}

func finalStatus(success, failure int) string {
	switch {
	case failure == 0:
		return model.StatusSent
	case success == 0:
		return model.StatusFailed
	default:
		return model.StatusPartial
	}
}
