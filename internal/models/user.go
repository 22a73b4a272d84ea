package models

import (
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User matches the users table created by the system migrations.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Password     string     `json:"password,omitempty"`
	Token        *string    `json:"-"`
	AccessLevel  string     `json:"access_level"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

func (u *User) Prepare() {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = html.EscapeString(strings.TrimSpace(u.Email))
	if u.AccessLevel == "" {
		u.AccessLevel = AccessView.String()
	}
}

func (u *User) Level() AccessLevel {
	return ParseAccessLevel(u.AccessLevel)
}
