package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/wellpath/wellpath-backend/internal/errors"
	"github.com/wellpath/wellpath-backend/internal/handler"
	"github.com/wellpath/wellpath-backend/internal/metrics"
	"github.com/wellpath/wellpath-backend/internal/model"
	"github.com/wellpath/wellpath-backend/internal/push"
	"github.com/wellpath/wellpath-backend/internal/service"
)

// stubStore is an in-memory campaign store that counts mutating calls so the
// auth tests can assert a rejected sweep touched nothing.
type stubStore struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]*model.Campaign
	mutations int
}

func newStubStore(campaigns ...*model.Campaign) *stubStore {
	s := &stubStore{campaigns: map[uuid.UUID]*model.Campaign{}}
	for _, c := range campaigns {
		s.campaigns[c.ID] = c
	}
	return s
}

func (s *stubStore) mutation() {
	s.mu.Lock()
	s.mutations++
	s.mu.Unlock()
}

func (s *stubStore) mutationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutations
}

func (s *stubStore) Create(c *model.Campaign) error {
	s.mutation()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.SendStatus == "" {
		if c.IsActive {
			c.SendStatus = model.StatusQueued
		} else {
			c.SendStatus = model.StatusIdle
		}
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.mu.Lock()
	cp := *c
	s.campaigns[c.ID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *stubStore) GetByID(id uuid.UUID) (*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (s *stubStore) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range s.campaigns {
		cp := *c
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (s *stubStore) ClaimForSending(id uuid.UUID) (bool, error) {
	s.mutation()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.SendStatus != model.StatusQueued {
		return false, nil
	}
	c.SendStatus = model.StatusSending
	c.UpdatedAt = time.Now()
	return true, nil
}

func (s *stubStore) BeginSend(id uuid.UUID, total int) error {
	s.mutation()
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.campaigns[id]; ok {
		c.SendTotal = total
		c.SendProgress = 0
		c.SuccessCount = 0
		c.FailureCount = 0
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (s *stubStore) UpdateProgress(id uuid.UUID, progress, success, failure int, sendErrors []string) error {
	s.mutation()
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.campaigns[id]; ok {
		c.SendProgress = progress
		c.SuccessCount = success
		c.FailureCount = failure
		c.SendErrors = append([]string(nil), sendErrors...)
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (s *stubStore) Finalize(id uuid.UUID, status string) error {
	s.mutation()
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.campaigns[id]; ok {
		c.SendStatus = status
		now := time.Now()
		c.SendCompletedAt = &now
		c.UpdatedAt = now
	}
	return nil
}

func (s *stubStore) FindInFlight() ([]*model.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range s.campaigns {
		if c.SendStatus == model.StatusQueued || c.SendStatus == model.StatusSending {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubStore) Requeue(id uuid.UUID) error {
	s.mutation()
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.campaigns[id]; ok {
		c.SendStatus = model.StatusQueued
		c.UpdatedAt = time.Now()
	}
	return nil
}

type stubDirectory struct{ tokens []string }

func (d *stubDirectory) ListActiveTokens() ([]string, error) { return d.tokens, nil }
func (d *stubDirectory) Register(t *model.DeviceToken) error { return nil }
func (d *stubDirectory) Deactivate(token string) error       { return nil }

type okSender struct{}

func (okSender) Send(ctx context.Context, token string, msg push.Message) push.Result {
	return push.Result{Success: true}
}

func newSweepHandler(store *stubStore, secret string, dev bool) *handler.SweepHandler {
	m := metrics.New()
	d := service.NewDispatcher(store, &stubDirectory{tokens: []string{"tok-1", "tok-2"}}, okSender{}, m)
	sweeper := service.NewSweeper(store, d, m, 5*time.Minute)
	return handler.NewSweepHandler(sweeper, secret, dev)
}

func TestSweepEndpointUnauthorized(t *testing.T) {
	stalled := &model.Campaign{
		ID:         uuid.New(),
		Title:      "stalled",
		Body:       "stalled",
		IsActive:   true,
		SendStatus: model.StatusSending,
		UpdatedAt:  time.Now().Add(-time.Hour),
	}
	store := newStubStore(stalled)
	h := newSweepHandler(store, "cron-secret", false)

	for _, auth := range []string{"", "Bearer wrong-secret", "cron-secret"} {
		req := httptest.NewRequest(http.MethodPost, "/internal/sweep", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		h.TriggerHandler(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	assert.Equal(t, 0, store.mutationCount(), "a rejected sweep must not touch the store")
	assert.Equal(t, model.StatusSending, mustGet(t, store, stalled.ID).SendStatus)
}

func TestSweepEndpointAuthorized(t *testing.T) {
	stalled := &model.Campaign{
		ID:         uuid.New(),
		Title:      "stalled",
		Body:       "stalled",
		IsActive:   true,
		SendStatus: model.StatusSending,
		UpdatedAt:  time.Now().Add(-time.Hour),
	}
	store := newStubStore(stalled)
	h := newSweepHandler(store, "cron-secret", false)

	req := httptest.NewRequest(http.MethodPost, "/internal/sweep", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	rec := httptest.NewRecorder()
	h.TriggerHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result service.SweepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Resumed)
	require.Len(t, result.CampaignIDs, 1)
	assert.Equal(t, stalled.ID, result.CampaignIDs[0])
	assert.Equal(t, model.StatusSent, mustGet(t, store, stalled.ID).SendStatus)
}

func TestSweepEndpointNoSecretDevelopmentOnly(t *testing.T) {
	store := newStubStore()

	prod := newSweepHandler(store, "", false)
	rec := httptest.NewRecorder()
	prod.TriggerHandler(rec, httptest.NewRequest(http.MethodPost, "/internal/sweep", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	dev := newSweepHandler(store, "", true)
	rec = httptest.NewRecorder()
	dev.TriggerHandler(rec, httptest.NewRequest(http.MethodPost, "/internal/sweep", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func mustGet(t *testing.T, store *stubStore, id uuid.UUID) *model.Campaign {
	t.Helper()
	c, err := store.GetByID(id)
	require.NoError(t, err)
	return c
}
