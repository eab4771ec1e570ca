package documents

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"parafeo/signature-portal/signature-backend/pkg/audit"
)

type Repository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	GetBySignatureRequestID(ctx context.Context, requestID string) (*Document, error)
	List(ctx context.Context, createdBy *uuid.UUID, status *Status) ([]Document, error)
	Update(ctx context.Context, doc *Document) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, entry audit.Entry) error
	SetSignatureRequestID(ctx context.Context, id uuid.UUID, requestID string, dispatchPending bool) error
	SetDispatchPending(ctx context.Context, id uuid.UUID, pending bool) error
	SetSignedFile(ctx context.Context, id uuid.UUID, file SignedFile) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, doc *Document) error {
	query := `
		INSERT INTO documents (
			id, title, file_name, file_path, file_size, status, workflow,
			signature_request_id, test_mode, dispatch_pending, signing_deadline,
			created_by, creator_email, history
		) VALUES (
			:id, :title, :file_name, :file_path, :file_size, :status, :workflow,
			:signature_request_id, :test_mode, :dispatch_pending, :signing_deadline,
			:created_by, :creator_email, :history
		)`
	_, err := r.db.NamedExecContext(ctx, query, doc)
	return err
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc, "SELECT * FROM documents WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &doc, err
}

func (r *postgresRepository) GetBySignatureRequestID(ctx context.Context, requestID string) (*Document, error) {
	var doc Document
	err := r.db.GetContext(ctx, &doc, "SELECT * FROM documents WHERE signature_request_id = $1", requestID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &doc, err
}

func (r *postgresRepository) List(ctx context.Context, createdBy *uuid.UUID, status *Status) ([]Document, error) {
	var docs []Document
	query := "SELECT * FROM documents WHERE 1=1"
	var args []interface{}
	argCount := 1

	if createdBy != nil {
		query += fmt.Sprintf(" AND created_by = $%d", argCount)
		args = append(args, *createdBy)
		argCount++
	}
	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *status)
		argCount++
	}
	query += " ORDER BY created_at DESC"

	err := r.db.SelectContext(ctx, &docs, query, args...)
	return docs, err
}

func (r *postgresRepository) Update(ctx context.Context, doc *Document) error {
	query := `
		UPDATE documents SET
			title = :title,
			status = :status,
			workflow = :workflow,
			signature_request_id = :signature_request_id,
			dispatch_pending = :dispatch_pending,
			signing_deadline = :signing_deadline,
			history = :history,
			updated_at = NOW()
		WHERE id = :id`
	_, err := r.db.NamedExecContext(ctx, query, doc)
	return err
}

// UpdateStatus writes the derived status and appends one history entry in
// a single statement so the aggregate and its trail move together.
func (r *postgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, entry audit.Entry) error {
	raw, err := audit.NewEntryJSON(entry.Action, entry.Actor, entry.Details)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE documents SET
			status = $2,
			history = history || $3::jsonb,
			updated_at = NOW()
		WHERE id = $1`,
		id, status, string(raw))
	return err
}

func (r *postgresRepository) SetSignatureRequestID(ctx context.Context, id uuid.UUID, requestID string, dispatchPending bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE documents SET
			signature_request_id = $2,
			dispatch_pending = $3,
			updated_at = NOW()
		WHERE id = $1`,
		id, requestID, dispatchPending)
	return err
}

func (r *postgresRepository) SetDispatchPending(ctx context.Context, id uuid.UUID, pending bool) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE documents SET dispatch_pending = $2, updated_at = NOW() WHERE id = $1", id, pending)
	return err
}

func (r *postgresRepository) SetSignedFile(ctx context.Context, id uuid.UUID, file SignedFile) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE documents SET signed_file = $2, updated_at = NOW() WHERE id = $1", id, file)
	return err
}

func (r *postgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	return err
}
