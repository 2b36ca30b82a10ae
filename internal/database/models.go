package database

import (
	"time"
)

// LicenseStatus is the coarse lifecycle state shown to the owning user.
type LicenseStatus string

const (
	StatusPendingVerification LicenseStatus = "pending_verification"
	StatusActive              LicenseStatus = "active"
	StatusRejected            LicenseStatus = "rejected"
)

// User represents a website account. Accounts are created at
// registration and referenced, never mutated, by the license pipeline.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never serialize
	Name         string     `json:"name"`
	Phone        string     `json:"phone,omitempty"`
	IsAdmin      bool       `json:"is_admin"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// License is the central record of the payment verification pipeline.
//
// The pair (AdminVerified, EmailSent) refines Status: a license with
// status=pending_verification and admin_verified=true is verified but
// not yet activated. EmailSent may only become true in the same update
// that sets status=active.
type License struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	LicenseKey       string        `json:"license_key"`
	Plan             string        `json:"plan"`
	PaymentReference string        `json:"payment_reference"`
	Amount           int64         `json:"amount"` // paise
	Status           LicenseStatus `json:"status"`
	AdminVerified    bool          `json:"admin_verified"`
	EmailSent        bool          `json:"email_sent"`
	ActivatedAt      *time.Time    `json:"activated_at,omitempty"`
	ExpiresAt        *time.Time    `json:"expires_at,omitempty"`
	VerifiedAt       *time.Time    `json:"verified_at,omitempty"`
	AdminNotes       string        `json:"admin_notes,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// LicenseState is the full lifecycle state derived from Status and the
// verification/delivery flags. Transition preconditions branch on this
// tag rather than on raw flag combinations.
type LicenseState string

const (
	StatePendingVerification LicenseState = "pending_verification"
	StateVerifiedUnsent      LicenseState = "verified_unsent"
	StateActive              LicenseState = "active"
	StateRejected            LicenseState = "rejected"
)

// State derives the lifecycle tag. The migrations constrain the flag
// combinations so every stored row maps onto exactly one state.
func (l *License) State() LicenseState {
	switch {
	case l.Status == StatusRejected:
		return StateRejected
	case l.Status == StatusActive:
		return StateActive
	case l.AdminVerified:
		return StateVerifiedUnsent
	default:
		return StatePendingVerification
	}
}

// AdminLicense is a license joined with its owner, as shown in the
// admin verification queue.
type AdminLicense struct {
	License
	OwnerName  string `json:"user_name"`
	OwnerEmail string `json:"user_email"`
	OwnerPhone string `json:"user_phone,omitempty"`
}

// PaymentLog is an append-only audit row, one per submission, patched
// (never replaced) with the outcome of admin review. It is not
// authoritative for license state.
type PaymentLog struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	LicenseID        string    `json:"license_id"`
	PaymentReference string    `json:"payment_reference"`
	Amount           int64     `json:"amount"`
	Status           string    `json:"status"`
	AdminVerified    bool      `json:"admin_verified"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
