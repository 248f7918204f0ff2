package domain

import "time"

// Account is the local credential record. ExternalID links it to the
// counterpart identity on the provider; the pair is created together and an
// account never exists without one.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	ExternalID   string
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
