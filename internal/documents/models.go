package documents

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"parafeo/signature-portal/signature-backend/internal/signatures"
	"parafeo/signature-portal/signature-backend/pkg/audit"
)

type Status string

const (
	StatusDraft             Status = "brouillon"
	StatusAwaitingSignature Status = "en_attente_signature"
	StatusPartiallySigned   Status = "partiellement_signe"
	StatusSigned            Status = "signe"
	StatusRejected          Status = "rejete"
	StatusArchived          Status = "archive"
)

type Role string

const (
	RoleSigner    Role = "signer"
	RoleValidator Role = "validator"
	RoleObserver  Role = "observer"
)

// WorkflowEntry is one required-signer slot on a document. Order is
// advisory: it drives who is notified next, not who may sign next.
type WorkflowEntry struct {
	SignerID        uuid.UUID         `json:"signer_id"`
	SignerEmail     string            `json:"signer_email"`
	SignerFirstName string            `json:"signer_first_name"`
	SignerLastName  string            `json:"signer_last_name"`
	Role            Role              `json:"role"`
	Order           int               `json:"order"`
	Required        bool              `json:"required"`
	Status          signatures.Status `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

type WorkflowEntries []WorkflowEntry

func (w WorkflowEntries) Value() (driver.Value, error) {
	if w == nil {
		return "[]", nil
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (w *WorkflowEntries) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*w = WorkflowEntries{}
		return nil
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	default:
		return fmt.Errorf("unsupported workflow source type %T", src)
	}
}

// SignedFile references the final signed artifact returned by the
// signing provider.
type SignedFile struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

func (f SignedFile) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *SignedFile) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	default:
		return fmt.Errorf("unsupported signed file source type %T", src)
	}
}

type Document struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	Title              string          `json:"title" db:"title"`
	FileName           string          `json:"file_name" db:"file_name"`
	FilePath           string          `json:"file_path" db:"file_path"`
	FileSize           int64           `json:"file_size" db:"file_size"`
	SignedFile         *SignedFile     `json:"signed_file,omitempty" db:"signed_file"`
	Status             Status          `json:"status" db:"status"`
	Workflow           WorkflowEntries `json:"workflow" db:"workflow"`
	SignatureRequestID string          `json:"signature_request_id,omitempty" db:"signature_request_id"`
	TestMode           bool            `json:"test_mode" db:"test_mode"`
	DispatchPending    bool            `json:"dispatch_pending" db:"dispatch_pending"`
	SigningDeadline    *time.Time      `json:"signing_deadline,omitempty" db:"signing_deadline"`
	CreatedBy          uuid.UUID       `json:"created_by" db:"created_by"`
	CreatorEmail       string          `json:"creator_email" db:"creator_email"`
	History            audit.Trail     `json:"history" db:"history"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// DocumentDetail composes a document with its signature records for
// read-side responses. Assembly is explicit; nothing is lazily loaded.
type DocumentDetail struct {
	Document   Document            `json:"document"`
	Signatures []signatures.Record `json:"signatures"`
	NextSigner *signatures.Record  `json:"next_signer,omitempty"`
}

// FullySigned reports whether every required record is signed. A document
// with no required records is never considered fully signed.
func FullySigned(records []signatures.Record) bool {
	required := 0
	for _, r := range records {
		if !r.Required {
			continue
		}
		required++
		if r.Status != signatures.StatusSigned {
			return false
		}
	}
	return required > 0
}

// NextSigner returns the pending required record with the smallest order,
// ties broken by creation time. Nil when none remain.
func NextSigner(records []signatures.Record) *signatures.Record {
	var next *signatures.Record
	for i := range records {
		r := &records[i]
		if !r.Required || r.Status != signatures.StatusPending {
			continue
		}
		if next == nil || r.SignOrder < next.SignOrder ||
			(r.SignOrder == next.SignOrder && r.CreatedAt.Before(next.CreatedAt)) {
			next = r
		}
	}
	return next
}

// DeriveStatus recomputes the document status from the full record set.
// It is the single source of truth for the aggregate: callers re-derive
// after every mutation instead of patching a cached value.
func DeriveStatus(current Status, records []signatures.Record) Status {
	if current == StatusDraft || current == StatusArchived {
		return current
	}
	for _, r := range records {
		if r.Required && r.Status == signatures.StatusRejected {
			return StatusRejected
		}
	}
	if FullySigned(records) {
		return StatusSigned
	}
	for _, r := range records {
		if r.Required && r.Status == signatures.StatusSigned {
			return StatusPartiallySigned
		}
	}
	return StatusAwaitingSignature
}
