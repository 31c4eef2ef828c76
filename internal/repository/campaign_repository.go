package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	appErrors "github.com/wellpath/wellpath-backend/internal/errors"
	"github.com/wellpath/wellpath-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(c *model.Campaign) error
	GetByID(id uuid.UUID) (*model.Campaign, error)
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)

	// Dispatch lifecycle
	ClaimForSending(id uuid.UUID) (bool, error)
	BeginSend(id uuid.UUID, total int) error
	UpdateProgress(id uuid.UUID, progress, success, failure int, sendErrors []string) error
	Finalize(id uuid.UUID, status string) error

	// Stall recovery
	FindInFlight() ([]*model.Campaign, error)
	Requeue(id uuid.UUID) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, title, body, image_url, deep_link_url, is_active,
	send_status, send_progress, send_total, success_count, failure_count, send_errors,
	send_started_at, send_completed_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.Title, &c.Body, &c.ImageURL, &c.DeepLinkURL, &c.IsActive,
		&c.SendStatus, &c.SendProgress, &c.SendTotal, &c.SuccessCount, &c.FailureCount,
		pq.Array(&c.SendErrors),
		&c.SendStartedAt, &c.SendCompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(c *model.Campaign) error {
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
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
        INSERT INTO campaigns (id, title, body, image_url, deep_link_url, is_active,
            send_status, send_errors, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, '{}', $8, $9)
    `
	_, err := r.DB.Exec(query,
		c.ID, c.Title, c.Body, c.ImageURL, c.DeepLinkURL, c.IsActive,
		c.SendStatus, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *CampaignRepository) GetByID(id uuid.UUID) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	args := []any{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND send_status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	countArgs := []any{}
	if status != "" {
		countQuery += " AND send_status=$1"
		countArgs = append(countArgs, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// ====================== Dispatch lifecycle ======================

// ClaimForSending atomically transitions queued -> sending. The conditional
// update is the only concurrency-control primitive in the dispatch path: the
// invocation that flips the row owns the campaign, every other concurrent
// invocation sees zero rows affected and must back off.
func (r *CampaignRepository) ClaimForSending(id uuid.UUID) (bool, error) {
	res, err := r.DB.Exec(
		`UPDATE campaigns SET send_status=$1, updated_at=NOW() WHERE id=$2 AND send_status=$3`,
		model.StatusSending, id, model.StatusQueued,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// BeginSend snapshots the recipient-set size and zeroes the counters for a
// fresh pass over the recipients. send_started_at keeps the timestamp of the
// first attempt across sweep-triggered resumes.
func (r *CampaignRepository) BeginSend(id uuid.UUID, total int) error {
	query := `
        UPDATE campaigns
        SET send_total=$1, send_progress=0, success_count=0, failure_count=0,
            send_errors='{}', send_started_at=COALESCE(send_started_at, NOW()),
            updated_at=NOW()
        WHERE id=$2
    `
	_, err := r.DB.Exec(query, total, id)
	return err
}

func (r *CampaignRepository) UpdateProgress(id uuid.UUID, progress, success, failure int, sendErrors []string) error {
	query := `
        UPDATE campaigns
        SET send_progress=$1, success_count=$2, failure_count=$3, send_errors=$4, updated_at=NOW()
        WHERE id=$5
    `
	_, err := r.DB.Exec(query, progress, success, failure, pq.Array(sendErrors), id)
	return err
}

func (r *CampaignRepository) Finalize(id uuid.UUID, status string) error {
	query := `
        UPDATE campaigns
        SET send_status=$1, send_completed_at=NOW(), updated_at=NOW()
        WHERE id=$2
    `
	_, err := r.DB.Exec(query, status, id)
	return err
}

// ====================== Stall recovery ======================

// FindInFlight returns every campaign still in a non-terminal dispatch state.
// Staleness filtering against the threshold happens in the sweeper.
func (r *CampaignRepository) FindInFlight() ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns
        WHERE send_status = ANY($1) ORDER BY updated_at ASC`

	rows, err := r.DB.Query(query, pq.Array([]string{model.StatusQueued, model.StatusSending}))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepository) Requeue(id uuid.UUID) error {
	_, err := r.DB.Exec(
		`UPDATE campaigns SET send_status=$1, updated_at=NOW() WHERE id=$2`,
		model.StatusQueued, id,
	)
	return err
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
