package signatures

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"parafeo/signature-portal/signature-backend/pkg/apperrors"
	"parafeo/signature-portal/signature-backend/pkg/audit"
)

type Repository interface {
	Create(ctx context.Context, record *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]Record, error)
	GetByProviderSignerID(ctx context.Context, documentID uuid.UUID, providerSignerID string) (*Record, error)
	GetBySignerEmail(ctx context.Context, documentID uuid.UUID, email string) (*Record, error)

	MarkSigned(ctx context.Context, id uuid.UUID, signedAt time.Time, sourceIP, comment, actor string) (bool, error)
	MarkRejected(ctx context.Context, id uuid.UUID, reason, comment, actor string) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, actor string) (bool, error)
	UpdateProviderInfo(ctx context.Context, id uuid.UUID, providerSignerID, providerStatus, signingURL string, urlExpiresAt *time.Time) error
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error

	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)

	MeanTimeToSignBySigner(ctx context.Context) ([]SignerStats, error)
	MeanTimeToSignByMonth(ctx context.Context) ([]MonthlyStats, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, record *Record) error {
	query := `
		INSERT INTO signature_records (
			id, document_id, signer_id, signer_email, signer_first_name, signer_last_name,
			status, sign_order, required, expires_at, provider_signer_id, provider_status,
			signing_url, signing_url_expires_at, history
		) VALUES (
			:id, :document_id, :signer_id, :signer_email, :signer_first_name, :signer_last_name,
			:status, :sign_order, :required, :expires_at, :provider_signer_id, :provider_status,
			:signing_url, :signing_url_expires_at, :history
		)`
	_, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Validation("a signature record already exists for this signer on this document")
		}
		return err
	}
	return nil
}

// isUniqueViolation reports whether err is a unique-constraint violation,
// enforcing at most one record per (document_id, signer_email).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	// Drivers other than lib/pq surface the violation as text only.
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	var record Record
	err := r.db.GetContext(ctx, &record, "SELECT * FROM signature_records WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &record, err
}

func (r *postgresRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]Record, error) {
	var records []Record
	err := r.db.SelectContext(ctx, &records,
		"SELECT * FROM signature_records WHERE document_id = $1 ORDER BY sign_order, created_at", documentID)
	return records, err
}

func (r *postgresRepository) GetByProviderSignerID(ctx context.Context, documentID uuid.UUID, providerSignerID string) (*Record, error) {
	var record Record
	err := r.db.GetContext(ctx, &record,
		"SELECT * FROM signature_records WHERE document_id = $1 AND provider_signer_id = $2", documentID, providerSignerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &record, err
}

func (r *postgresRepository) GetBySignerEmail(ctx context.Context, documentID uuid.UUID, email string) (*Record, error) {
	var record Record
	err := r.db.GetContext(ctx, &record,
		"SELECT * FROM signature_records WHERE document_id = $1 AND signer_email = $2", documentID, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &record, err
}

// MarkSigned transitions a record to signed. The guard on the current
// status makes the transition a compare-and-set: a late or duplicate
// update can never revert a terminal record.
func (r *postgresRepository) MarkSigned(ctx context.Context, id uuid.UUID, signedAt time.Time, sourceIP, comment, actor string) (bool, error) {
	entry, err := audit.NewEntryJSON("signature", actor, comment)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE signature_records SET
			status = 'signe',
			signed_at = $2,
			source_ip = $3,
			comment = $4,
			history = history || $5::jsonb,
			updated_at = NOW()
		WHERE id = $1 AND status = 'en_attente'`,
		id, signedAt, sourceIP, comment, string(entry))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *postgresRepository) MarkRejected(ctx context.Context, id uuid.UUID, reason, comment, actor string) (bool, error) {
	entry, err := audit.NewEntryJSON("rejet", actor, reason)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE signature_records SET
			status = 'rejete',
			reject_reason = $2,
			comment = $3,
			history = history || $4::jsonb,
			updated_at = NOW()
		WHERE id = $1 AND status = 'en_attente'`,
		id, reason, comment, string(entry))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *postgresRepository) MarkCancelled(ctx context.Context, id uuid.UUID, actor string) (bool, error) {
	entry, err := audit.NewEntryJSON("annulation", actor, "")
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE signature_records SET
			status = 'annule',
			history = history || $2::jsonb,
			updated_at = NOW()
		WHERE id = $1 AND status = 'en_attente'`,
		id, string(entry))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *postgresRepository) UpdateProviderInfo(ctx context.Context, id uuid.UUID, providerSignerID, providerStatus, signingURL string, urlExpiresAt *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE signature_records SET
			provider_signer_id = $2,
			provider_status = $3,
			signing_url = $4,
			signing_url_expires_at = $5,
			updated_at = NOW()
		WHERE id = $1`,
		id, providerSignerID, providerStatus, signingURL, urlExpiresAt)
	return err
}

// DeleteByDocument removes a document's records. Callers only invoke this
// for documents still in draft, or for orphaned records of misconfigured
// workflows.
func (r *postgresRepository) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM signature_records WHERE document_id = $1", documentID)
	return err
}

// ExpireLapsed is the only producer of the 'expire' status. Records
// without an expiration are never touched; re-running is a no-op.
func (r *postgresRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	entry, err := audit.NewEntryJSON("expiration", "system", "")
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE signature_records SET
			status = 'expire',
			history = history || $2::jsonb,
			updated_at = NOW()
		WHERE status = 'en_attente' AND expires_at IS NOT NULL AND expires_at < $1`,
		now, string(entry))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *postgresRepository) MeanTimeToSignBySigner(ctx context.Context) ([]SignerStats, error) {
	var stats []SignerStats
	err := r.db.SelectContext(ctx, &stats, `
		SELECT
			signer_email,
			COUNT(*) AS signed_count,
			AVG(EXTRACT(EPOCH FROM (signed_at - created_at))) / 3600 AS mean_hours_to_sign
		FROM signature_records
		WHERE status = 'signe' AND signed_at IS NOT NULL
		GROUP BY signer_email
		ORDER BY signer_email`)
	return stats, err
}

func (r *postgresRepository) MeanTimeToSignByMonth(ctx context.Context) ([]MonthlyStats, error) {
	var stats []MonthlyStats
	err := r.db.SelectContext(ctx, &stats, `
		SELECT
			EXTRACT(YEAR FROM signed_at)::int AS year,
			EXTRACT(MONTH FROM signed_at)::int AS month,
			COUNT(*) AS signed_count,
			AVG(EXTRACT(EPOCH FROM (signed_at - created_at))) / 3600 AS mean_hours_to_sign
		FROM signature_records
		WHERE status = 'signe' AND signed_at IS NOT NULL
		GROUP BY 1, 2
		ORDER BY 1, 2`)
	return stats, err
}
