// internal/model/device_token.go
package model

import "time"

type DeviceToken struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Platform  string    `db:"platform" json:"platform"` // ios, android
	Token     string    `db:"token" json:"token"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
