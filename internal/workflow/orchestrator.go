package workflow

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"parafeo/signature-portal/signature-backend/internal/auth"
	"parafeo/signature-portal/signature-backend/internal/documents"
	"parafeo/signature-portal/signature-backend/internal/gateway"
	"parafeo/signature-portal/signature-backend/internal/signatures"
	"parafeo/signature-portal/signature-backend/pkg/apperrors"
	"parafeo/signature-portal/signature-backend/pkg/audit"
	"parafeo/signature-portal/signature-backend/pkg/security"
	"parafeo/signature-portal/signature-backend/pkg/storage"
)

// Notifier fans out workflow emails. Implementations are best-effort and
// never return errors.
type Notifier interface {
	SignatureRequested(ctx context.Context, documentID uuid.UUID, recipientEmail, documentTitle, signingURL string)
	Reminder(ctx context.Context, documentID uuid.UUID, recipientEmail, documentTitle string)
	DocumentSigned(ctx context.Context, documentID uuid.UUID, recipientEmails []string, documentTitle string)
	DocumentRejected(ctx context.Context, documentID uuid.UUID, recipientEmail, documentTitle, reason string)
}

// Orchestrator drives the signing workflow: it materializes signature
// records from a document's workflow definition, dispatches the external
// signing request, and applies document-level side effects when a signer
// acts.
type Orchestrator struct {
	docs     *documents.Service
	docRepo  documents.Repository
	sigs     *signatures.Service
	sigRepo  signatures.Repository
	gw       gateway.Gateway
	notifier Notifier
	store    storage.S3Client
	bucket   string
	readFile func(string) ([]byte, error)
	logger   *zap.Logger
}

func NewOrchestrator(
	docs *documents.Service,
	docRepo documents.Repository,
	sigs *signatures.Service,
	sigRepo signatures.Repository,
	gw gateway.Gateway,
	notifier Notifier,
	store storage.S3Client,
	bucket string,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		docs:     docs,
		docRepo:  docRepo,
		sigs:     sigs,
		sigRepo:  sigRepo,
		gw:       gw,
		notifier: notifier,
		store:    store,
		bucket:   bucket,
		readFile: os.ReadFile,
		logger:   logger,
	}
}

// DispatchForSigning materializes one signature record per workflow entry
// and sends the external signing request. Local records are the source of
// truth: a gateway failure never aborts record creation, it only leaves
// the document flagged for a later resync. Re-invocation never creates
// duplicate records.
func (o *Orchestrator) DispatchForSigning(ctx context.Context, documentID uuid.UUID, actor auth.Actor, embedded bool) (*documents.DocumentDetail, error) {
	doc, err := o.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	retrying := doc.Status == documents.StatusAwaitingSignature && doc.DispatchPending
	if doc.Status != documents.StatusDraft && !retrying {
		return nil, apperrors.InvalidState("document cannot be dispatched (status=%s)", doc.Status)
	}
	if len(doc.Workflow) == 0 {
		return nil, apperrors.Validation("document has no signature workflow")
	}
	for i, entry := range doc.Workflow {
		if entry.SignerEmail == "" {
			return nil, apperrors.Validation("workflow entry %d does not resolve to a signer", i)
		}
	}

	existing, err := o.sigRepo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	byEmail := make(map[string]*signatures.Record, len(existing))
	for i := range existing {
		byEmail[existing[i].SignerEmail] = &existing[i]
	}

	now := time.Now().UTC()
	for _, entry := range doc.Workflow {
		if _, ok := byEmail[entry.SignerEmail]; ok {
			continue
		}
		record := &signatures.Record{
			ID:              uuid.New(),
			DocumentID:      documentID,
			SignerID:        entry.SignerID,
			SignerEmail:     entry.SignerEmail,
			SignerFirstName: entry.SignerFirstName,
			SignerLastName:  entry.SignerLastName,
			Status:          signatures.StatusPending,
			SignOrder:       entry.Order,
			Required:        entry.Required,
			ExpiresAt:       doc.SigningDeadline,
			History:         audit.Trail{}.Append("creation", actor.Email, ""),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := o.sigRepo.Create(ctx, record); err != nil {
			return nil, err
		}
	}

	if doc.Status == documents.StatusDraft {
		entry := audit.Entry{Action: "envoi_signature", Actor: actor.Email}
		if err := o.docRepo.UpdateStatus(ctx, documentID, documents.StatusAwaitingSignature, entry); err != nil {
			return nil, err
		}
	}

	// External dispatch happens after the local commit, and its failure is
	// deliberately non-fatal: the records above are already authoritative.
	if err := o.dispatchToProvider(ctx, doc, embedded); err != nil {
		o.logger.Warn("External signing dispatch failed, flagged for resync",
			zap.String("document_id", documentID.String()),
			zap.Error(err))
		if setErr := o.docRepo.SetDispatchPending(ctx, documentID, true); setErr != nil {
			return nil, setErr
		}
	}

	detail, err := o.docs.GetDetail(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if next := documents.NextSigner(detail.Signatures); next != nil {
		o.notifier.SignatureRequested(ctx, documentID, next.SignerEmail, doc.Title,
			next.CachedSigningURL(time.Now().UTC()))
	}

	return detail, nil
}

func (o *Orchestrator) dispatchToProvider(ctx context.Context, doc *documents.Document, embedded bool) error {
	content, err := o.readFile(doc.FilePath)
	if err != nil {
		return apperrors.Gateway("failed to read document file", err)
	}

	req := gateway.CreateRequest{
		Title:         doc.Title,
		Message:       fmt.Sprintf("Signature demandée pour « %s »", doc.Title),
		Files:         []gateway.File{{Name: doc.FileName, Content: content}},
		CorrelationID: doc.ID.String(),
	}
	for _, entry := range doc.Workflow {
		req.Signers = append(req.Signers, gateway.Signer{
			Email:     entry.SignerEmail,
			FirstName: entry.SignerFirstName,
			LastName:  entry.SignerLastName,
			Order:     entry.Order,
		})
	}

	var result *gateway.CreateResult
	if embedded {
		result, err = o.gw.CreateEmbeddedSigningRequest(ctx, req)
	} else {
		result, err = o.gw.CreateSigningRequest(ctx, req)
	}
	if err != nil {
		return err
	}

	if err := o.docRepo.SetSignatureRequestID(ctx, doc.ID, result.RequestID, false); err != nil {
		// The provider request exists but its id was never persisted.
		// Cancel it so the dispatch-pending retry cannot create a second
		// live request for the same document.
		if cancelErr := o.gw.CancelRequest(ctx, result.RequestID); cancelErr != nil {
			o.logger.Error("Orphaned provider signing request",
				zap.String("document_id", doc.ID.String()),
				zap.String("request_id", result.RequestID),
				zap.Error(cancelErr))
		}
		return err
	}
	doc.SignatureRequestID = result.RequestID

	for _, signer := range result.Signers {
		record, err := o.sigRepo.GetBySignerEmail(ctx, doc.ID, signer.Email)
		if err != nil || record == nil {
			continue
		}
		if err := o.sigRepo.UpdateProviderInfo(ctx, record.ID,
			signer.ID, signer.Status, signer.SigningURL, signer.SigningURLExpiresAt); err != nil {
			o.logger.Warn("Failed to store provider signer info",
				zap.String("record_id", record.ID.String()),
				zap.Error(err))
		}
	}
	return nil
}

// RecordSignature applies a signer's own signature, then recomputes the
// document aggregate and fans out notifications.
func (o *Orchestrator) RecordSignature(ctx context.Context, recordID uuid.UUID, actor auth.Actor, comment, sourceIP string) (*signatures.Record, error) {
	record, err := o.sigs.Sign(ctx, recordID, actor, comment, sourceIP)
	if err != nil {
		return nil, err
	}

	doc, status, err := o.docs.Recompute(ctx, record.DocumentID, actor.Email)
	if err != nil {
		return nil, err
	}
	o.applyStatusSideEffects(ctx, doc, status)

	return record, nil
}

// RecordRejection applies a signer's refusal; a required signer's
// rejection takes the whole document to rejete.
func (o *Orchestrator) RecordRejection(ctx context.Context, recordID uuid.UUID, actor auth.Actor, reason, comment string) (*signatures.Record, error) {
	record, err := o.sigs.Reject(ctx, recordID, actor, reason, comment)
	if err != nil {
		return nil, err
	}

	doc, status, err := o.docs.Recompute(ctx, record.DocumentID, actor.Email)
	if err != nil {
		return nil, err
	}
	o.applyStatusSideEffects(ctx, doc, status)

	return record, nil
}

// SendReminder nudges a pending signer through the provider and by local
// email. The provider call is best-effort; the local email goes out
// regardless of its outcome.
func (o *Orchestrator) SendReminder(ctx context.Context, recordID uuid.UUID) error {
	record, err := o.sigs.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if record.Status != signatures.StatusPending {
		return apperrors.InvalidState("signature record is not pending (status=%s)", record.Status)
	}

	doc, err := o.docs.Get(ctx, record.DocumentID)
	if err != nil {
		return err
	}

	if doc.SignatureRequestID != "" {
		if err := o.gw.SendReminder(ctx, doc.SignatureRequestID, record.SignerEmail); err != nil {
			o.logger.Warn("Provider reminder failed",
				zap.String("record_id", recordID.String()),
				zap.Error(err))
		}
	}
	o.notifier.Reminder(ctx, doc.ID, record.SignerEmail, doc.Title)
	return nil
}

// DeleteDocument removes a document that has not completed signing,
// cancelling its external request when one exists.
func (o *Orchestrator) DeleteDocument(ctx context.Context, documentID uuid.UUID, actor auth.Actor) error {
	doc, err := o.docs.Get(ctx, documentID)
	if err != nil {
		return err
	}
	switch doc.Status {
	case documents.StatusSigned, documents.StatusArchived:
		return apperrors.InvalidState("signed documents cannot be deleted")
	}

	if doc.SignatureRequestID != "" {
		if err := o.gw.CancelRequest(ctx, doc.SignatureRequestID); err != nil {
			o.logger.Warn("Provider cancellation failed",
				zap.String("document_id", documentID.String()),
				zap.Error(err))
		}
	}

	if err := o.sigRepo.DeleteByDocument(ctx, documentID); err != nil {
		return err
	}
	return o.docRepo.Delete(ctx, documentID)
}

// ApplyStatusSideEffects runs the document-level side effects of reaching
// a status: artifact retrieval and notification fan-out. Used both for
// local signer actions and for reconciled provider events.
func (o *Orchestrator) ApplyStatusSideEffects(ctx context.Context, doc *documents.Document, status documents.Status) {
	o.applyStatusSideEffects(ctx, doc, status)
}

func (o *Orchestrator) applyStatusSideEffects(ctx context.Context, doc *documents.Document, status documents.Status) {
	switch status {
	case documents.StatusPartiallySigned:
		records, err := o.sigRepo.ListByDocument(ctx, doc.ID)
		if err != nil {
			o.logger.Warn("Failed to load records for notification", zap.Error(err))
			return
		}
		if next := documents.NextSigner(records); next != nil {
			o.notifier.SignatureRequested(ctx, doc.ID, next.SignerEmail, doc.Title,
				next.CachedSigningURL(time.Now().UTC()))
		}
	case documents.StatusSigned:
		if err := o.FetchSignedArtifact(ctx, doc); err != nil {
			o.logger.Warn("Signed artifact retrieval failed",
				zap.String("document_id", doc.ID.String()),
				zap.Error(err))
		}
		o.notifier.DocumentSigned(ctx, doc.ID, participantEmails(doc), doc.Title)
	case documents.StatusRejected:
		reason := "signature refusée"
		if records, err := o.sigRepo.ListByDocument(ctx, doc.ID); err == nil {
			for _, r := range records {
				if r.Status == signatures.StatusRejected && r.RejectReason != "" {
					reason = r.RejectReason
					break
				}
			}
		}
		o.notifier.DocumentRejected(ctx, doc.ID, doc.CreatorEmail, doc.Title, reason)
	}
}

// FetchSignedArtifact downloads the final signed file from the provider,
// stores it, and persists its reference with a content hash.
func (o *Orchestrator) FetchSignedArtifact(ctx context.Context, doc *documents.Document) error {
	if doc.SignatureRequestID == "" {
		return apperrors.InvalidState("document has no signature request id")
	}

	var buf bytes.Buffer
	size, err := o.gw.DownloadSignedFile(ctx, doc.SignatureRequestID, &buf)
	if err != nil {
		return err
	}

	hash := security.HashBytes(buf.Bytes())
	name := "signed_" + doc.FileName
	key := storage.SignedFileKey(doc.ID.String(), name)
	if err := o.store.Upload(ctx, o.bucket, key, bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("failed to store signed artifact: %w", err)
	}

	return o.docs.AttachSignedFile(ctx, doc.ID, documents.SignedFile{
		Name:      name,
		Path:      key,
		Size:      size,
		Hash:      hash,
		CreatedAt: time.Now().UTC(),
	})
}

func participantEmails(doc *documents.Document) []string {
	seen := map[string]bool{}
	var emails []string
	if doc.CreatorEmail != "" {
		seen[doc.CreatorEmail] = true
		emails = append(emails, doc.CreatorEmail)
	}
	for _, entry := range doc.Workflow {
		if entry.SignerEmail == "" || seen[entry.SignerEmail] {
			continue
		}
		seen[entry.SignerEmail] = true
		emails = append(emails, entry.SignerEmail)
	}
	return emails
}
