package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EmailConfig configuration for outbound email
type EmailConfig struct {
	SMTPHost    string `json:"smtp_host"`
	SMTPPort    int    `json:"smtp_port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name"`
}

// Service sends workflow emails and logs every delivery attempt.
// All sends are best-effort: failures are logged and recorded, never
// propagated to the caller.
type Service struct {
	db     *gorm.DB
	config EmailConfig
	logger *zap.Logger
}

func NewService(db *gorm.DB, config EmailConfig, logger *zap.Logger) (*Service, error) {
	if err := db.AutoMigrate(&SentNotification{}); err != nil {
		return nil, fmt.Errorf("failed to migrate notifications tables: %w", err)
	}
	return &Service{db: db, config: config, logger: logger}, nil
}

func (s *Service) SignatureRequested(ctx context.Context, documentID uuid.UUID, recipientEmail, documentTitle, signingURL string) {
	subject := fmt.Sprintf("Signature demandée : %s", documentTitle)
	body := fmt.Sprintf(
		"Bonjour,\n\nVotre signature est attendue sur le document « %s ».\n", documentTitle)
	if signingURL != "" {
		body += fmt.Sprintf("\nVous pouvez signer ici : %s\n", signingURL)
	}
	s.deliver(ctx, documentID, recipientEmail, KindSignatureRequested, subject, body)
}

func (s *Service) Reminder(ctx context.Context, documentID uuid.UUID, recipientEmail, documentTitle string) {
	subject := fmt.Sprintf("Rappel : signature en attente sur %s", documentTitle)
	body := fmt.Sprintf(
		"Bonjour,\n\nLe document « %s » attend toujours votre signature.\n", documentTitle)
	s.deliver(ctx, documentID, recipientEmail, KindReminder, subject, body)
}

func (s *Service) DocumentSigned(ctx context.Context, documentID uuid.UUID, recipientEmails []string, documentTitle string) {
	subject := fmt.Sprintf("Document entièrement signé : %s", documentTitle)
	body := fmt.Sprintf(
		"Bonjour,\n\nToutes les signatures requises ont été recueillies sur « %s ».\n", documentTitle)
	for _, recipient := range recipientEmails {
		s.deliver(ctx, documentID, recipient, KindDocumentSigned, subject, body)
	}
}

func (s *Service) DocumentRejected(ctx context.Context, documentID uuid.UUID, recipientEmail, documentTitle, reason string) {
	subject := fmt.Sprintf("Document rejeté : %s", documentTitle)
	body := fmt.Sprintf(
		"Bonjour,\n\nLe document « %s » a été rejeté.\nMotif : %s\n", documentTitle, reason)
	s.deliver(ctx, documentID, recipientEmail, KindDocumentRejected, subject, body)
}

func (s *Service) deliver(ctx context.Context, documentID uuid.UUID, recipient string, kind Kind, subject, body string) {
	record := &SentNotification{
		ID:             uuid.New(),
		DocumentID:     documentID,
		RecipientEmail: recipient,
		Kind:           kind,
		Subject:        subject,
		Status:         StatusSent,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.sendEmail(recipient, subject, body); err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		s.logger.Warn("Notification delivery failed",
			zap.String("recipient", recipient),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		s.logger.Error("Failed to log notification", zap.Error(err))
	}
}

func (s *Service) sendEmail(to, subject, body string) error {
	if s.config.SMTPHost == "" {
		return fmt.Errorf("smtp not configured")
	}

	from := s.config.FromAddress
	msg := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", s.config.FromName, from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPHost)
	}
	return smtp.SendMail(addr, auth, from, []string{to}, []byte(msg))
}
