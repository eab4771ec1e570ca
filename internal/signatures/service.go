package signatures

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"parafeo/signature-portal/signature-backend/internal/auth"
	"parafeo/signature-portal/signature-backend/pkg/apperrors"
)

// Service owns the per-signer state machine. Document-level side effects
// (status recompute, notifications) belong to the workflow orchestrator.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperrors.NotFound("signature record %s not found", id)
	}
	return record, nil
}

func (s *Service) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]Record, error) {
	return s.repo.ListByDocument(ctx, documentID)
}

// Sign records the signer's own signature. Only the designated signer may
// sign, and only while the record is signable.
func (s *Service) Sign(ctx context.Context, id uuid.UUID, actor auth.Actor, comment, sourceIP string) (*Record, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(record.SignerEmail, actor.Email) {
		return nil, apperrors.Forbidden("only the designated signer may sign this record")
	}
	now := time.Now().UTC()
	if !record.Signable(now) {
		return nil, apperrors.InvalidState("signature record is not signable (status=%s)", record.Status)
	}

	updated, err := s.repo.MarkSigned(ctx, id, now, sourceIP, comment, actor.Email)
	if err != nil {
		return nil, err
	}
	if !updated {
		// Lost the compare-and-set race against a concurrent transition.
		return nil, apperrors.InvalidState("signature record is no longer pending")
	}

	s.logger.Info("Signature recorded",
		zap.String("record_id", id.String()),
		zap.String("document_id", record.DocumentID.String()),
		zap.String("signer", record.SignerEmail))

	return s.Get(ctx, id)
}

// Reject records the signer's refusal. Rejection only requires the record
// to be pending: a lapsed pending record can still be rejected.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor auth.Actor, reason, comment string) (*Record, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(record.SignerEmail, actor.Email) {
		return nil, apperrors.Forbidden("only the designated signer may reject this record")
	}
	if record.Status != StatusPending {
		return nil, apperrors.InvalidState("signature record is not pending (status=%s)", record.Status)
	}
	if reason == "" {
		return nil, apperrors.Validation("a rejection reason is required")
	}

	updated, err := s.repo.MarkRejected(ctx, id, reason, comment, actor.Email)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, apperrors.InvalidState("signature record is no longer pending")
	}

	s.logger.Info("Signature rejected",
		zap.String("record_id", id.String()),
		zap.String("document_id", record.DocumentID.String()),
		zap.String("reason", reason))

	return s.Get(ctx, id)
}

// SigningURL returns the cached provider signing URL while it is valid.
// An empty URL tells the caller to request a fresh one from the gateway.
func (s *Service) SigningURL(ctx context.Context, id uuid.UUID) (string, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return record.CachedSigningURL(time.Now().UTC()), nil
}

// ExpireLapsed sweeps pending records whose expiration has passed.
func (s *Service) ExpireLapsed(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireLapsed(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Expired lapsed signature records", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Service) StatsBySigner(ctx context.Context) ([]SignerStats, error) {
	return s.repo.MeanTimeToSignBySigner(ctx)
}

func (s *Service) StatsByMonth(ctx context.Context) ([]MonthlyStats, error) {
	return s.repo.MeanTimeToSignByMonth(ctx)
}
