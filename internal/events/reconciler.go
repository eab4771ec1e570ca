package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"parafeo/signature-portal/signature-backend/internal/auth"
	"parafeo/signature-portal/signature-backend/internal/documents"
	"parafeo/signature-portal/signature-backend/internal/gateway"
	"parafeo/signature-portal/signature-backend/internal/signatures"
	"parafeo/signature-portal/signature-backend/internal/workflow"
	"parafeo/signature-portal/signature-backend/pkg/apperrors"
)

const defaultDeclineReason = "refus sans motif communiqué"

// Reconciler applies provider-reported outcomes to local state. Events
// may arrive out of order, duplicated or partial; every transition is a
// guarded compare-and-set and the document aggregate is re-derived from
// the full record set as the final step of every mutation path.
type Reconciler struct {
	docs         *documents.Service
	sigRepo      signatures.Repository
	gw           gateway.Gateway
	orchestrator *workflow.Orchestrator
	logger       *zap.Logger
}

func NewReconciler(
	docs *documents.Service,
	sigRepo signatures.Repository,
	gw gateway.Gateway,
	orchestrator *workflow.Orchestrator,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		docs:         docs,
		sigRepo:      sigRepo,
		gw:           gw,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// Apply reconciles one event. Unknown correlation ids and unknown event
// types are logged and swallowed: the transport acknowledgement to the
// provider is a separate concern from internal reconciliation.
func (r *Reconciler) Apply(ctx context.Context, ev Event) error {
	if ev.Type == EventTest {
		r.logger.Debug("Connectivity test event acknowledged")
		return nil
	}
	if ev.RequestID == "" {
		r.logger.Warn("Event without correlation id ignored", zap.String("type", string(ev.Type)))
		return nil
	}

	doc, err := r.docs.GetBySignatureRequestID(ctx, ev.RequestID)
	if err != nil {
		return err
	}
	if doc == nil {
		r.logger.Warn("Event for unknown signature request ignored",
			zap.String("request_id", ev.RequestID),
			zap.String("type", string(ev.Type)))
		return nil
	}

	switch ev.Type {
	case EventSent, EventViewed:
		r.logger.Info("Informational provider event",
			zap.String("document_id", doc.ID.String()),
			zap.String("type", string(ev.Type)))
		return nil
	case EventSigned:
		return r.applySigned(ctx, doc, ev, false)
	case EventAllSigned:
		return r.applySigned(ctx, doc, ev, true)
	case EventDeclined:
		return r.applyDeclined(ctx, doc, ev)
	case EventError:
		r.logger.Error("Provider reported an error event",
			zap.String("document_id", doc.ID.String()),
			zap.String("request_id", ev.RequestID))
		return nil
	default:
		r.logger.Warn("Unrecognized provider event type ignored",
			zap.String("document_id", doc.ID.String()),
			zap.String("type", string(ev.Type)))
		return nil
	}
}

// applySigned upserts provider-reported signatures onto local records.
// Replays are no-ops: a record already out of en_attente is never
// touched, so no duplicate history entries are produced.
func (r *Reconciler) applySigned(ctx context.Context, doc *documents.Document, ev Event, allSigned bool) error {
	applyErr := r.settleSignedOutcomes(ctx, doc, ev, allSigned)

	// Re-derive even when settling stopped early: records mutated before
	// the failure must still be reflected in the aggregate.
	prev := doc.Status
	updated, status, err := r.docs.Recompute(ctx, doc.ID, "provider")
	if err != nil {
		if applyErr != nil {
			return applyErr
		}
		return err
	}
	if status != prev {
		r.orchestrator.ApplyStatusSideEffects(ctx, updated, status)
	}
	return applyErr
}

func (r *Reconciler) settleSignedOutcomes(ctx context.Context, doc *documents.Document, ev Event, allSigned bool) error {
	for _, outcome := range ev.Signers {
		if outcome.Status != gateway.ProviderStatusSigned {
			continue
		}
		record, err := r.matchRecord(ctx, doc.ID, outcome)
		if err != nil {
			return err
		}
		if record == nil {
			r.logger.Warn("Signed outcome matches no local record",
				zap.String("document_id", doc.ID.String()),
				zap.String("provider_signer_id", outcome.ProviderSignerID))
			continue
		}
		if record.Status == signatures.StatusSigned {
			continue
		}
		signedAt := ev.OccurredAt
		if outcome.SignedAt != nil {
			signedAt = *outcome.SignedAt
		}
		if _, err := r.sigRepo.MarkSigned(ctx, record.ID, signedAt, "", "", "provider"); err != nil {
			return err
		}
	}

	if allSigned {
		// The provider is authoritative for all_signed: settle any record
		// it did not itemize in the payload.
		records, err := r.sigRepo.ListByDocument(ctx, doc.ID)
		if err != nil {
			return err
		}
		for _, record := range records {
			if record.Status != signatures.StatusPending {
				continue
			}
			if _, err := r.sigRepo.MarkSigned(ctx, record.ID, ev.OccurredAt, "", "", "provider"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Reconciler) applyDeclined(ctx context.Context, doc *documents.Document, ev Event) error {
	applyErr := r.settleDeclinedOutcomes(ctx, doc, ev)

	prev := doc.Status
	updated, status, err := r.docs.Recompute(ctx, doc.ID, "provider")
	if err != nil {
		if applyErr != nil {
			return applyErr
		}
		return err
	}
	if status != prev {
		r.orchestrator.ApplyStatusSideEffects(ctx, updated, status)
	}
	return applyErr
}

func (r *Reconciler) settleDeclinedOutcomes(ctx context.Context, doc *documents.Document, ev Event) error {
	for _, outcome := range ev.Signers {
		if outcome.Status != gateway.ProviderStatusDeclined {
			continue
		}
		record, err := r.matchRecord(ctx, doc.ID, outcome)
		if err != nil {
			return err
		}
		if record == nil {
			r.logger.Warn("Declined outcome matches no local record",
				zap.String("document_id", doc.ID.String()),
				zap.String("provider_signer_id", outcome.ProviderSignerID))
			continue
		}
		if record.Status == signatures.StatusRejected {
			continue
		}
		reason := outcome.DeclineReason
		if reason == "" {
			reason = defaultDeclineReason
		}
		if _, err := r.sigRepo.MarkRejected(ctx, record.ID, reason, "", "provider"); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) matchRecord(ctx context.Context, documentID uuid.UUID, outcome SignerOutcome) (*signatures.Record, error) {
	if outcome.ProviderSignerID != "" {
		record, err := r.sigRepo.GetByProviderSignerID(ctx, documentID, outcome.ProviderSignerID)
		if err != nil || record != nil {
			return record, err
		}
	}
	if outcome.Email != "" {
		return r.sigRepo.GetBySignerEmail(ctx, documentID, outcome.Email)
	}
	return nil, nil
}

// Resync pulls the current provider-side status for a document and feeds
// it through the same reconciliation path as a webhook event, so both
// produce identical end state. A document still flagged dispatch-pending
// with no provider request is re-dispatched instead.
func (r *Reconciler) Resync(ctx context.Context, documentID uuid.UUID) (*documents.DocumentDetail, error) {
	doc, err := r.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if doc.SignatureRequestID == "" {
		if !doc.DispatchPending {
			return nil, apperrors.InvalidState("document has no signature request to resync")
		}
		return r.orchestrator.DispatchForSigning(ctx, documentID,
			resyncActor(doc), false)
	}

	status, err := r.gw.GetRequestStatus(ctx, doc.SignatureRequestID)
	if err != nil {
		return nil, err
	}

	if err := r.Apply(ctx, translateStatus(status)); err != nil {
		return nil, err
	}
	return r.docs.GetDetail(ctx, documentID)
}

// resyncActor attributes resync-triggered mutations to the document
// creator in the audit trail.
func resyncActor(doc *documents.Document) auth.Actor {
	return auth.Actor{ID: doc.CreatedBy, Email: doc.CreatorEmail}
}

// translateStatus converts a pulled provider status into the equivalent
// event envelope.
func translateStatus(status *gateway.RequestStatus) Event {
	ev := Event{
		Type:       EventSigned,
		OccurredAt: time.Now().UTC(),
		RequestID:  status.RequestID,
	}

	declined := false
	allSigned := len(status.Signers) > 0
	for _, signer := range status.Signers {
		ev.Signers = append(ev.Signers, SignerOutcome{
			ProviderSignerID: signer.ID,
			Email:            signer.Email,
			Status:           signer.Status,
			DeclineReason:    signer.DeclineReason,
			SignedAt:         signer.SignedAt,
		})
		if signer.Status == gateway.ProviderStatusDeclined {
			declined = true
		}
		if signer.Status != gateway.ProviderStatusSigned {
			allSigned = false
		}
	}

	if declined {
		ev.Type = EventDeclined
	} else if allSigned {
		ev.Type = EventAllSigned
	}
	return ev
}
