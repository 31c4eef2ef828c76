// internal/model/campaign.go
package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Campaign send statuses. A campaign is created in StatusQueued (or
// StatusIdle when inactive), claimed into StatusSending by exactly one
// dispatcher, and finished in one of the three terminal statuses.
const (
	StatusIdle    = "idle"
	StatusQueued  = "queued"
	StatusSending = "sending"
	StatusSent    = "sent"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

type Campaign struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Body        string    `db:"body" json:"body"`
	ImageURL    string    `db:"image_url" json:"image_url,omitempty"`
	DeepLinkURL string    `db:"deep_link_url" json:"deep_link_url,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`

	SendStatus   string   `db:"send_status" json:"send_status"`
	SendProgress int      `db:"send_progress" json:"send_progress"`
	SendTotal    int      `db:"send_total" json:"send_total"`
	SuccessCount int      `db:"success_count" json:"success_count"`
	FailureCount int      `db:"failure_count" json:"failure_count"`
	SendErrors   []string `db:"send_errors" json:"send_errors,omitempty"`

	SendStartedAt   *time.Time `db:"send_started_at" json:"send_started_at,omitempty"`
	SendCompletedAt *time.Time `db:"send_completed_at" json:"send_completed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// PercentComplete returns send progress as a whole percentage, 0 for a
// campaign that never snapshotted any recipients.
func (c *Campaign) PercentComplete() int {
	if c.SendTotal == 0 {
		return 0
	}
	return int(math.Round(float64(c.SendProgress) / float64(c.SendTotal) * 100))
}

// Terminal reports whether the campaign reached a final send status.
func (c *Campaign) Terminal() bool {
	switch c.SendStatus {
	case StatusSent, StatusPartial, StatusFailed:
		return true
	}
	return false
}
