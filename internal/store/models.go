package store

import "time"

type StoreEntry struct {
	ID          string
	Name        string
	Description string
	Category    string
	Location    string
	Floor       int
	Block       string
	ImageURL    string
	Instagram   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StoreUpdate carries a partial update. Nil fields are left untouched.
type StoreUpdate struct {
	Name        *string
	Description *string
	Category    *string
	Location    *string
	Floor       *int
	Block       *string
	ImageURL    *string
	Instagram   *string
}

type BannerConfig struct {
	ImageURL  string
	Title     string
	Subtitle  string
	UpdatedAt time.Time
}

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
