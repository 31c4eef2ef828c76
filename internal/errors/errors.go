// internal/errors/errors.go
package appErrors

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID uuid.UUID
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign %s not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id uuid.UUID) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrCampaignInactive is returned when a send is requested for a campaign
// with is_active=false.
type ErrCampaignInactive struct {
	CampaignID uuid.UUID
}

func (e *ErrCampaignInactive) Error() string {
	return fmt.Sprintf("campaign %s is inactive and cannot be sent", e.CampaignID)
}

func NewCampaignInactive(id uuid.UUID) error {
	return &ErrCampaignInactive{CampaignID: id}
}
