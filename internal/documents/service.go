package documents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"parafeo/signature-portal/signature-backend/internal/auth"
	"parafeo/signature-portal/signature-backend/internal/signatures"
	"parafeo/signature-portal/signature-backend/pkg/apperrors"
	"parafeo/signature-portal/signature-backend/pkg/audit"
	"parafeo/signature-portal/signature-backend/pkg/workflows"
)

type CreateRequest struct {
	Title           string
	FileName        string
	FilePath        string
	FileSize        int64
	Workflow        []WorkflowEntry
	SigningDeadline *time.Time
	TestMode        bool
}

// Service owns the document aggregate: workflow definition, audit trail
// and the status derived from the full set of signature records.
type Service struct {
	repo    Repository
	sigRepo signatures.Repository
	sm      *workflows.StateMachine
	logger  *zap.Logger
}

func NewService(repo Repository, sigRepo signatures.Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		sigRepo: sigRepo,
		sm:      workflows.NewStateMachine(),
		logger:  logger,
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest, actor auth.Actor) (*Document, error) {
	if req.Title == "" {
		return nil, apperrors.Validation("document title is required")
	}
	if req.FileName == "" || req.FilePath == "" {
		return nil, apperrors.Validation("document file reference is required")
	}
	now := time.Now().UTC()
	entries := make(WorkflowEntries, 0, len(req.Workflow))
	for i, entry := range req.Workflow {
		if entry.SignerEmail == "" {
			return nil, apperrors.Validation("workflow entry %d is missing a signer email", i)
		}
		if entry.Order <= 0 {
			return nil, apperrors.Validation("workflow entry %d must have a positive order", i)
		}
		switch entry.Role {
		case RoleSigner, RoleValidator, RoleObserver:
		case "":
			entry.Role = RoleSigner
		default:
			return nil, apperrors.Validation("workflow entry %d has unknown role %q", i, entry.Role)
		}
		entry.Status = signatures.StatusPending
		entry.CreatedAt = now
		entries = append(entries, entry)
	}

	doc := &Document{
		ID:              uuid.New(),
		Title:           req.Title,
		FileName:        req.FileName,
		FilePath:        req.FilePath,
		FileSize:        req.FileSize,
		Status:          StatusDraft,
		Workflow:        entries,
		TestMode:        req.TestMode,
		SigningDeadline: req.SigningDeadline,
		CreatedBy:       actor.ID,
		CreatorEmail:    actor.Email,
		History:         audit.Trail{}.Append("creation", actor.Email, ""),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("Document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("title", doc.Title),
		zap.Int("workflow_entries", len(entries)))

	return doc, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperrors.NotFound("document %s not found", id)
	}
	return doc, nil
}

func (s *Service) GetBySignatureRequestID(ctx context.Context, requestID string) (*Document, error) {
	return s.repo.GetBySignatureRequestID(ctx, requestID)
}

// GetDetail composes the document with its signature records.
func (s *Service) GetDetail(ctx context.Context, id uuid.UUID) (*DocumentDetail, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	records, err := s.sigRepo.ListByDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{
		Document:   *doc,
		Signatures: records,
		NextSigner: NextSigner(records),
	}, nil
}

func (s *Service) List(ctx context.Context, createdBy *uuid.UUID, status *Status) ([]Document, error) {
	return s.repo.List(ctx, createdBy, status)
}

// Recompute re-derives the document status from the current record set
// and persists it when it changed. It is the final step of every mutation
// path touching signature records; the previous aggregate value is never
// trusted.
func (s *Service) Recompute(ctx context.Context, id uuid.UUID, actor string) (*Document, Status, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	records, err := s.sigRepo.ListByDocument(ctx, id)
	if err != nil {
		return nil, "", err
	}

	next := DeriveStatus(doc.Status, records)
	if next == doc.Status {
		return doc, next, nil
	}
	if !s.sm.CanTransition(string(doc.Status), string(next)) {
		// Terminal statuses are never overwritten by late recomputes.
		s.logger.Warn("Skipping disallowed status transition",
			zap.String("document_id", id.String()),
			zap.String("from", string(doc.Status)),
			zap.String("to", string(next)))
		return doc, doc.Status, nil
	}

	entry := audit.Entry{Action: "changement_statut", Actor: actor, Details: string(next)}
	if err := s.repo.UpdateStatus(ctx, id, next, entry); err != nil {
		return nil, "", err
	}
	doc.Status = next

	s.logger.Info("Document status recomputed",
		zap.String("document_id", id.String()),
		zap.String("status", string(next)))

	return doc, next, nil
}

// Archive moves a fully signed document to its terminal archived state.
func (s *Service) Archive(ctx context.Context, id uuid.UUID, actor auth.Actor) (*Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.sm.CanTransition(string(doc.Status), string(StatusArchived)) {
		return nil, apperrors.InvalidState("only signed documents can be archived (status=%s)", doc.Status)
	}
	entry := audit.Entry{Action: "archivage", Actor: actor.Email}
	if err := s.repo.UpdateStatus(ctx, id, StatusArchived, entry); err != nil {
		return nil, err
	}
	doc.Status = StatusArchived
	return doc, nil
}

// AttachSignedFile persists the signed artifact reference.
func (s *Service) AttachSignedFile(ctx context.Context, id uuid.UUID, file SignedFile) error {
	return s.repo.SetSignedFile(ctx, id, file)
}
