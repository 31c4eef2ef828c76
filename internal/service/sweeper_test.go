package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellpath/wellpath-backend/internal/metrics"
	"github.com/wellpath/wellpath-backend/internal/model"
	"github.com/wellpath/wellpath-backend/internal/repository"
	"github.com/wellpath/wellpath-backend/internal/service"
)

func stalledCampaign(status string, age time.Duration) *model.Campaign {
	c := queuedCampaign()
	c.SendStatus = status
	c.UpdatedAt = time.Now().Add(-age)
	return c
}

func newSweeper(store *fakeCampaignStore, dir repository.DeviceTokenRepositoryInterface, sender *fakeSender, threshold time.Duration) *service.Sweeper {
	m := metrics.New()
	d := service.NewDispatcher(store, dir, sender, m)
	return service.NewSweeper(store, d, m, threshold)
}

func TestSweepResumesStalledCampaign(t *testing.T) {
	stalled := stalledCampaign(model.StatusSending, 10*time.Minute)
	store := newFakeCampaignStore(stalled)
	s := newSweeper(store, &fakeDirectory{tokens: makeTokens(4)}, &fakeSender{}, 5*time.Minute)

	result, err := s.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Resumed)
	require.Len(t, result.CampaignIDs, 1)
	assert.Equal(t, stalled.ID, result.CampaignIDs[0])

	got := store.get(stalled.ID)
	assert.Equal(t, model.StatusSent, got.SendStatus)
	assert.Equal(t, 4, got.SuccessCount)
}

func TestSweepIgnoresFreshCampaigns(t *testing.T) {
	fresh := stalledCampaign(model.StatusSending, time.Minute)
	stale := stalledCampaign(model.StatusQueued, 10*time.Minute)
	store := newFakeCampaignStore(fresh, stale)
	s := newSweeper(store, &fakeDirectory{tokens: makeTokens(2)}, &fakeSender{}, 5*time.Minute)

	result, err := s.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Resumed)
	require.Len(t, result.CampaignIDs, 1)
	assert.Equal(t, stale.ID, result.CampaignIDs[0])

	// The fresh in-flight campaign is untouched.
	assert.Equal(t, model.StatusSending, store.get(fresh.ID).SendStatus)
}

func TestSweepIgnoresTerminalCampaigns(t *testing.T) {
	done := stalledCampaign(model.StatusSent, time.Hour)
	store := newFakeCampaignStore(done)
	s := newSweeper(store, &fakeDirectory{tokens: makeTokens(2)}, &fakeSender{}, 5*time.Minute)

	result, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Resumed)
}

func TestSweepIsolatesPerCampaignFailures(t *testing.T) {
	a := stalledCampaign(model.StatusSending, 10*time.Minute)
	b := stalledCampaign(model.StatusSending, 10*time.Minute)
	store := newFakeCampaignStore(a, b)
	store.requeueErr[a.ID] = errors.New("row lock timeout")
	s := newSweeper(store, &fakeDirectory{tokens: makeTokens(3)}, &fakeSender{}, 5*time.Minute)

	result, err := s.Sweep(context.Background())
	require.NoError(t, err)

	// A could not be requeued; B was still resumed and finished.
	assert.Equal(t, 1, result.Resumed)
	require.Len(t, result.CampaignIDs, 1)
	assert.Equal(t, b.ID, result.CampaignIDs[0])
	assert.Equal(t, model.StatusSent, store.get(b.ID).SendStatus)
}

func TestSweepContinuesAfterResumedDispatchError(t *testing.T) {
	a := stalledCampaign(model.StatusSending, 10*time.Minute)
	b := stalledCampaign(model.StatusSending, 11*time.Minute)
	store := newFakeCampaignStore(a, b)

	// The directory fails for the first resumed dispatch only, so campaign A
	// aborts mid-attempt while B still completes.
	dir := &flakyDirectory{tokens: makeTokens(2), failures: 1}
	s := newSweeper(store, dir, &fakeSender{}, 5*time.Minute)

	result, err := s.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Resumed, "both stalled campaigns are attempted")
	statuses := []string{store.get(a.ID).SendStatus, store.get(b.ID).SendStatus}
	assert.Contains(t, statuses, model.StatusSent, "the healthy campaign still finishes")
	assert.Contains(t, statuses, model.StatusSending, "the failed one is left for the next sweep")
}

// flakyDirectory fails the first N ListActiveTokens calls.
type flakyDirectory struct {
	fakeDirectory
	tokens   []string
	failures int
}

func (d *flakyDirectory) ListActiveTokens() ([]string, error) {
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("directory down")
	}
	return append([]string(nil), d.tokens...), nil
}
