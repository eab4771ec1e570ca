package workflow

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"parafeo/signature-portal/signature-backend/internal/documents"
	"parafeo/signature-portal/signature-backend/internal/gateway"
	"parafeo/signature-portal/signature-backend/internal/signatures"
	"parafeo/signature-portal/signature-backend/pkg/audit"
)

// MockDocumentRepository is a mock implementation of documents.Repository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *documents.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*documents.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*documents.Document), args.Error(1)
}

func (m *MockDocumentRepository) GetBySignatureRequestID(ctx context.Context, requestID string) (*documents.Document, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*documents.Document), args.Error(1)
}

func (m *MockDocumentRepository) List(ctx context.Context, createdBy *uuid.UUID, status *documents.Status) ([]documents.Document, error) {
	args := m.Called(ctx, createdBy, status)
	return args.Get(0).([]documents.Document), args.Error(1)
}

func (m *MockDocumentRepository) Update(ctx context.Context, doc *documents.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status documents.Status, entry audit.Entry) error {
	args := m.Called(ctx, id, status, entry)
	return args.Error(0)
}

func (m *MockDocumentRepository) SetSignatureRequestID(ctx context.Context, id uuid.UUID, requestID string, dispatchPending bool) error {
	args := m.Called(ctx, id, requestID, dispatchPending)
	return args.Error(0)
}

func (m *MockDocumentRepository) SetDispatchPending(ctx context.Context, id uuid.UUID, pending bool) error {
	args := m.Called(ctx, id, pending)
	return args.Error(0)
}

func (m *MockDocumentRepository) SetSignedFile(ctx context.Context, id uuid.UUID, file documents.SignedFile) error {
	args := m.Called(ctx, id, file)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockSignatureRepository is a mock implementation of signatures.Repository
type MockSignatureRepository struct {
	mock.Mock
}

func (m *MockSignatureRepository) Create(ctx context.Context, record *signatures.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSignatureRepository) GetByID(ctx context.Context, id uuid.UUID) (*signatures.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*signatures.Record), args.Error(1)
}

func (m *MockSignatureRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]signatures.Record, error) {
	args := m.Called(ctx, documentID)
	return args.Get(0).([]signatures.Record), args.Error(1)
}

func (m *MockSignatureRepository) GetByProviderSignerID(ctx context.Context, documentID uuid.UUID, providerSignerID string) (*signatures.Record, error) {
	args := m.Called(ctx, documentID, providerSignerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*signatures.Record), args.Error(1)
}

func (m *MockSignatureRepository) GetBySignerEmail(ctx context.Context, documentID uuid.UUID, email string) (*signatures.Record, error) {
	args := m.Called(ctx, documentID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*signatures.Record), args.Error(1)
}

func (m *MockSignatureRepository) MarkSigned(ctx context.Context, id uuid.UUID, signedAt time.Time, sourceIP, comment, actor string) (bool, error) {
	args := m.Called(ctx, id, signedAt, sourceIP, comment, actor)
	return args.Bool(0), args.Error(1)
}

func (m *MockSignatureRepository) MarkRejected(ctx context.Context, id uuid.UUID, reason, comment, actor string) (bool, error) {
	args := m.Called(ctx, id, reason, comment, actor)
	return args.Bool(0), args.Error(1)
}

func (m *MockSignatureRepository) MarkCancelled(ctx context.Context, id uuid.UUID, actor string) (bool, error) {
	args := m.Called(ctx, id, actor)
	return args.Bool(0), args.Error(1)
}

func (m *MockSignatureRepository) UpdateProviderInfo(ctx context.Context, id uuid.UUID, providerSignerID, providerStatus, signingURL string, urlExpiresAt *time.Time) error {
	args := m.Called(ctx, id, providerSignerID, providerStatus, signingURL, urlExpiresAt)
	return args.Error(0)
}

func (m *MockSignatureRepository) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func (m *MockSignatureRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSignatureRepository) MeanTimeToSignBySigner(ctx context.Context) ([]signatures.SignerStats, error) {
	args := m.Called(ctx)
	return args.Get(0).([]signatures.SignerStats), args.Error(1)
}

func (m *MockSignatureRepository) MeanTimeToSignByMonth(ctx context.Context) ([]signatures.MonthlyStats, error) {
	args := m.Called(ctx)
	return args.Get(0).([]signatures.MonthlyStats), args.Error(1)
}

// MockGateway is a mock implementation of gateway.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateSigningRequest(ctx context.Context, req gateway.CreateRequest) (*gateway.CreateResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CreateResult), args.Error(1)
}

func (m *MockGateway) CreateEmbeddedSigningRequest(ctx context.Context, req gateway.CreateRequest) (*gateway.CreateResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CreateResult), args.Error(1)
}

func (m *MockGateway) GetRequestStatus(ctx context.Context, requestID string) (*gateway.RequestStatus, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RequestStatus), args.Error(1)
}

func (m *MockGateway) DownloadSignedFile(ctx context.Context, requestID string, dest io.Writer) (int64, error) {
	args := m.Called(ctx, requestID, dest)
	if content, ok := args.Get(0).([]byte); ok {
		n, _ := dest.Write(content)
		return int64(n), args.Error(1)
	}
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) SendReminder(ctx context.Context, requestID, signerEmail string) error {
	args := m.Called(ctx, requestID, signerEmail)
	return args.Error(0)
}

func (m *MockGateway) CancelRequest(ctx context.Context, requestID string) error {
	args := m.Called(ctx, requestID)
	return args.Error(0)
}

func (m *MockGateway) VerifyEventAuthenticity(payload []byte, signature string) bool {
	args := m.Called(payload, signature)
	return args.Bool(0)
}

// MockNotifier is a mock implementation of the Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SignatureRequested(ctx context.Context, documentID uuid.UUID, recipientEmail, documentTitle, signingURL string) {
	m.Called(ctx, documentID, recipientEmail, documentTitle, signingURL)
}

func (m *MockNotifier) Reminder(ctx context.Context, documentID uuid.UUID, recipientEmail, documentTitle string) {
	m.Called(ctx, documentID, recipientEmail, documentTitle)
}

func (m *MockNotifier) DocumentSigned(ctx context.Context, documentID uuid.UUID, recipientEmails []string, documentTitle string) {
	m.Called(ctx, documentID, recipientEmails, documentTitle)
}

func (m *MockNotifier) DocumentRejected(ctx context.Context, documentID uuid.UUID, recipientEmail, documentTitle, reason string) {
	m.Called(ctx, documentID, recipientEmail, documentTitle, reason)
}

// MockStore is a mock implementation of storage.S3Client
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Upload(ctx context.Context, bucket, key string, body io.Reader) error {
	args := m.Called(ctx, bucket, key, body)
	return args.Error(0)
}

func (m *MockStore) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, bucket, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, bucket, key string) error {
	args := m.Called(ctx, bucket, key)
	return args.Error(0)
}

func (m *MockStore) GetPresignedURL(ctx context.Context, bucket, key string, expiration time.Duration) (string, error) {
	args := m.Called(ctx, bucket, key, expiration)
	return args.String(0), args.Error(1)
}
