package model

import "time"

// User owns a board. It is reachable by API token, by Telegram id, or both.
type User struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	Name       string  `json:"name"`
	APIToken   *string `gorm:"uniqueIndex" json:"-"`
	TelegramID *int64  `gorm:"uniqueIndex" json:"-"`
	FirstName  string  `json:"first_name,omitempty"`
	LastName   string  `json:"last_name,omitempty"`
	Username   string  `json:"username,omitempty"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
