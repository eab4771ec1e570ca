package notifications

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSignatureRequested Kind = "signature_requested"
	KindReminder           Kind = "reminder"
	KindDocumentSigned     Kind = "document_signed"
	KindDocumentRejected   Kind = "document_rejected"
)

type DeliveryStatus string

const (
	StatusSent   DeliveryStatus = "sent"
	StatusFailed DeliveryStatus = "failed"
)

// SentNotification is the delivery log row for one outbound email.
type SentNotification struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID     uuid.UUID      `gorm:"type:uuid;index" json:"document_id"`
	RecipientEmail string         `gorm:"size:255;index" json:"recipient_email"`
	Kind           Kind           `gorm:"size:64" json:"kind"`
	Subject        string         `gorm:"size:512" json:"subject"`
	Status         DeliveryStatus `gorm:"size:32" json:"status"`
	Error          string         `gorm:"type:text" json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (SentNotification) TableName() string {
	return "sent_notifications"
}
