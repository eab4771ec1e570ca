package signatures

import (
	"time"

	"github.com/google/uuid"

	"parafeo/signature-portal/signature-backend/pkg/audit"
)

type Status string

const (
	StatusPending   Status = "en_attente"
	StatusSigned    Status = "signe"
	StatusRejected  Status = "rejete"
	StatusCancelled Status = "annule"
	StatusExpired   Status = "expire"
)

// Terminal reports whether no further transition is permitted out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSigned, StatusRejected, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Record tracks one signer's obligation against one document.
// At most one record exists per (document, signer) pair.
type Record struct {
	ID                  uuid.UUID   `json:"id" db:"id"`
	DocumentID          uuid.UUID   `json:"document_id" db:"document_id"`
	SignerID            uuid.UUID   `json:"signer_id" db:"signer_id"`
	SignerEmail         string      `json:"signer_email" db:"signer_email"`
	SignerFirstName     string      `json:"signer_first_name" db:"signer_first_name"`
	SignerLastName      string      `json:"signer_last_name" db:"signer_last_name"`
	Status              Status      `json:"status" db:"status"`
	SignOrder           int         `json:"sign_order" db:"sign_order"`
	Required            bool        `json:"required" db:"required"`
	ExpiresAt           *time.Time  `json:"expires_at,omitempty" db:"expires_at"`
	SignedAt            *time.Time  `json:"signed_at,omitempty" db:"signed_at"`
	SourceIP            string      `json:"source_ip,omitempty" db:"source_ip"`
	Comment             string      `json:"comment,omitempty" db:"comment"`
	RejectReason        string      `json:"reject_reason,omitempty" db:"reject_reason"`
	ProviderSignerID    string      `json:"provider_signer_id,omitempty" db:"provider_signer_id"`
	ProviderStatus      string      `json:"provider_status,omitempty" db:"provider_status"`
	SigningURL          string      `json:"-" db:"signing_url"`
	SigningURLExpiresAt *time.Time  `json:"-" db:"signing_url_expires_at"`
	History             audit.Trail `json:"history" db:"history"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"`
}

// Signable reports whether the record can still be signed at the given
// instant: pending, and strictly before its expiration when one is set.
func (r *Record) Signable(now time.Time) bool {
	if r.Status != StatusPending {
		return false
	}
	if r.ExpiresAt != nil && !now.Before(*r.ExpiresAt) {
		return false
	}
	return true
}

// CachedSigningURL returns the provider-issued signing URL while it is
// still valid; an empty string means the caller must request a fresh one.
func (r *Record) CachedSigningURL(now time.Time) string {
	if r.SigningURL == "" {
		return ""
	}
	if r.SigningURLExpiresAt == nil || !now.Before(*r.SigningURLExpiresAt) {
		return ""
	}
	return r.SigningURL
}

// SignerStats aggregates signing delay per signer. Only signed records
// are counted.
type SignerStats struct {
	SignerEmail     string  `json:"signer_email" db:"signer_email"`
	SignedCount     int     `json:"signed_count" db:"signed_count"`
	MeanHoursToSign float64 `json:"mean_hours_to_sign" db:"mean_hours_to_sign"`
}

// MonthlyStats aggregates signing delay per calendar month of signature.
type MonthlyStats struct {
	Year            int     `json:"year" db:"year"`
	Month           int     `json:"month" db:"month"`
	SignedCount     int     `json:"signed_count" db:"signed_count"`
	MeanHoursToSign float64 `json:"mean_hours_to_sign" db:"mean_hours_to_sign"`
}
