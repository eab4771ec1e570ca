package gateway

import "time"

// Signer is one participant of a signing request, in the provider's shape.
type Signer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Order     int    `json:"order,omitempty"`
}

// File is one document to sign. Content must be non-empty bytes read from
// stable storage.
type File struct {
	Name    string `json:"name"`
	Content []byte `json:"-"`
}

type CreateRequest struct {
	Title         string
	Message       string
	Files         []File
	Signers       []Signer
	CorrelationID string
}

// SignerResult carries the provider-issued identity and state of one signer.
type SignerResult struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	Status              string     `json:"status"`
	SigningURL          string     `json:"signing_url,omitempty"`
	SigningURLExpiresAt *time.Time `json:"signing_url_expires_at,omitempty"`
}

type CreateResult struct {
	RequestID string         `json:"request_id"`
	Signers   []SignerResult `json:"signers"`
}

// SignerStatus is the provider-side view of one signer on a status query.
type SignerStatus struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Status         string     `json:"status"`
	DeclineReason  string     `json:"decline_reason,omitempty"`
	SignedAt       *time.Time `json:"signed_at,omitempty"`
	LastViewedAt   *time.Time `json:"last_viewed_at,omitempty"`
	LastRemindedAt *time.Time `json:"last_reminded_at,omitempty"`
}

type RequestStatus struct {
	RequestID string         `json:"request_id"`
	Status    string         `json:"status"`
	Signers   []SignerStatus `json:"signers"`
}

// Provider-side signer status codes.
const (
	ProviderStatusPending  = "pending"
	ProviderStatusViewed   = "viewed"
	ProviderStatusSigned   = "signed"
	ProviderStatusDeclined = "declined"
)
