package repository

import (
	"database/sql"
	"time"

	"github.com/wellpath/wellpath-backend/internal/model"
)

// DeviceTokenRepositoryInterface defines the recipient-directory methods the
// dispatcher and the registration handlers need.
type DeviceTokenRepositoryInterface interface {
	ListActiveTokens() ([]string, error)
	Register(t *model.DeviceToken) error
	Deactivate(token string) error
}

// DeviceTokenRepository is the concrete implementation
type DeviceTokenRepository struct {
	DB *sql.DB
}

// ListActiveTokens returns the push token of every active, token-bearing
// device at call time.
func (r *DeviceTokenRepository) ListActiveTokens() ([]string, error) {
	query := `
        SELECT token FROM device_tokens
        WHERE is_active = TRUE AND token <> ''
        ORDER BY id
    `
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// Register upserts a device token. A re-registered token is reactivated and
// moved to its current user.
func (r *DeviceTokenRepository) Register(t *model.DeviceToken) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.IsActive = true

	query := `
        INSERT INTO device_tokens (user_id, platform, token, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, TRUE, $4, $5)
        ON CONFLICT (token) DO UPDATE
        SET user_id=EXCLUDED.user_id, platform=EXCLUDED.platform, is_active=TRUE, updated_at=EXCLUDED.updated_at
        RETURNING id
    `
	return r.DB.QueryRow(query, t.UserID, t.Platform, t.Token, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
}

// Deactivate retires a token so it stops receiving campaign pushes.
func (r *DeviceTokenRepository) Deactivate(token string) error {
	_, err := r.DB.Exec(
		`UPDATE device_tokens SET is_active=FALSE, updated_at=NOW() WHERE token=$1`,
		token,
	)
	return err
}

var _ DeviceTokenRepositoryInterface = (*DeviceTokenRepository)(nil)
