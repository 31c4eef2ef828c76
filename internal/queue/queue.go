package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TopicCampaignDispatch carries campaign IDs waiting for a dispatch run.
const TopicCampaignDispatch = "campaign_dispatch"

// Queue interface
type Queue interface {
	Publish(topic string, campaignID uuid.UUID) error
	Subscribe(topic string, handler func(campaignID uuid.UUID) error) error
}

// InMemoryQueue is an in-process queue with retry, used when no broker is
// configured. Jobs survive handler errors, not process restarts; the stall
// sweep covers the latter.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(campaignID uuid.UUID) error
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(campaignID uuid.UUID) error),
	}
}

type job struct {
	campaignID uuid.UUID
	retryCount int
	maxRetries int
}

// Publish sends a campaign ID to all subscribers
func (q *InMemoryQueue) Publish(topic string, campaignID uuid.UUID) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	j := job{
		campaignID: campaignID,
		maxRetries: 3,
	}

	for _, handler := range handlers {
		go q.processJob(handler, j)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(campaignID uuid.UUID) error, j job) {
	for j.retryCount <= j.maxRetries {
		err := handler(j.campaignID)
		if err == nil {
			return // ACK
		}

		j.retryCount++
		log.Warn().
			Err(err).
			Str("campaign_id", j.campaignID.String()).
			Int("attempt", j.retryCount).
			Msg("dispatch job failed")

		if j.retryCount > j.maxRetries {
			log.Error().
				Str("campaign_id", j.campaignID.String()).
				Msg("dispatch job permanently failed, leaving campaign for the sweep")
			return // No requeue
		}

		// Backoff before retry. The dispatcher's claim makes repeats safe.
		time.Sleep(time.Duration(j.retryCount*500) * time.Millisecond)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(campaignID uuid.UUID) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

var _ Queue = (*InMemoryQueue)(nil)
