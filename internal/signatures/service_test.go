package signatures

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"parafeo/signature-portal/signature-backend/internal/auth"
	"parafeo/signature-portal/signature-backend/pkg/apperrors"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, record *Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]Record, error) {
	args := m.Called(ctx, documentID)
	return args.Get(0).([]Record), args.Error(1)
}

func (m *MockRepository) GetByProviderSignerID(ctx context.Context, documentID uuid.UUID, providerSignerID string) (*Record, error) {
	args := m.Called(ctx, documentID, providerSignerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockRepository) GetBySignerEmail(ctx context.Context, documentID uuid.UUID, email string) (*Record, error) {
	args := m.Called(ctx, documentID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockRepository) MarkSigned(ctx context.Context, id uuid.UUID, signedAt time.Time, sourceIP, comment, actor string) (bool, error) {
	args := m.Called(ctx, id, signedAt, sourceIP, comment, actor)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MarkRejected(ctx context.Context, id uuid.UUID, reason, comment, actor string) (bool, error) {
	args := m.Called(ctx, id, reason, comment, actor)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MarkCancelled(ctx context.Context, id uuid.UUID, actor string) (bool, error) {
	args := m.Called(ctx, id, actor)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) UpdateProviderInfo(ctx context.Context, id uuid.UUID, providerSignerID, providerStatus, signingURL string, urlExpiresAt *time.Time) error {
	args := m.Called(ctx, id, providerSignerID, providerStatus, signingURL, urlExpiresAt)
	return args.Error(0)
}

func (m *MockRepository) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func (m *MockRepository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) MeanTimeToSignBySigner(ctx context.Context) ([]SignerStats, error) {
	args := m.Called(ctx)
	return args.Get(0).([]SignerStats), args.Error(1)
}

func (m *MockRepository) MeanTimeToSignByMonth(ctx context.Context) ([]MonthlyStats, error) {
	args := m.Called(ctx)
	return args.Get(0).([]MonthlyStats), args.Error(1)
}

func pendingRecord(email string) *Record {
	return &Record{
		ID:          uuid.New(),
		DocumentID:  uuid.New(),
		SignerEmail: email,
		Status:      StatusPending,
		Required:    true,
		SignOrder:   1,
	}
}

func TestSignRecordsSignature(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())

	ctx := context.Background()
	record := pendingRecord("alice@example.fr")
	signed := *record
	signed.Status = StatusSigned

	mockRepo.On("GetByID", ctx, record.ID).Return(record, nil).Once()
	mockRepo.On("MarkSigned", ctx, record.ID, mock.AnythingOfType("time.Time"), "192.0.2.10", "lu et approuvé", "alice@example.fr").Return(true, nil)
	mockRepo.On("GetByID", ctx, record.ID).Return(&signed, nil).Once()

	result, err := service.Sign(ctx, record.ID, auth.Actor{Email: "alice@example.fr"}, "lu et approuvé", "192.0.2.10")

	assert.NoError(t, err)
	assert.Equal(t, StatusSigned, result.Status)
	mockRepo.AssertExpectations(t)
}

func TestSignRefusesOtherSigner(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())

	ctx := context.Background()
	record := pendingRecord("alice@example.fr")
	mockRepo.On("GetByID", ctx, record.ID).Return(record, nil)

	_, err := service.Sign(ctx, record.ID, auth.Actor{Email: "mallory@example.fr"}, "", "")

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	mockRepo.AssertNotCalled(t, "MarkSigned", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSignCaseInsensitiveEmailMatch(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())

	ctx := context.Background()
	record := pendingRecord("Alice@Example.FR")
	signed := *record
	signed.Status = StatusSigned

	mockRepo.On("GetByID", ctx, record.ID).Return(record, nil).Once()
	mockRepo.On("MarkSigned", ctx, record.ID, mock.AnythingOfType("time.Time"), "", "", "alice@example.fr").Return(true, nil)
	mockRepo.On("GetByID", ctx, record.ID).Return(&signed, nil).Once()

	_, err := service.Sign(ctx, record.ID, auth.Actor{Email: "alice@example.fr"}, "", "")
	assert.NoError(t, err)
}

func TestSignRefusesLapsedRecord(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())

	ctx := context.Background()
	record := pendingRecord("alice@example.fr")
	past := time.Now().UTC().Add(-time.Minute)
	record.ExpiresAt = &past

	mockRepo.On("GetByID", ctx, record.ID).Return(record, nil)

	_, err := service.Sign(ctx, record.ID, auth.Actor{Email: "alice@example.fr"}, "", "")

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}

func TestSignLosesCompareAndSetRace(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())

	ctx := context.Background()
	record := pendingRecord("alice@example.fr")

	mockRepo.On("GetByID", ctx, record.ID).Return(record, nil)
	mockRepo.On("MarkSigned", ctx, record.ID, mock.AnythingOfType("time.Time"), "", "", "alice@example.fr").Return(false, nil)

	_, err := service.Sign(ctx, record.ID, auth.Actor{Email: "alice@example.fr"}, "", "")

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}

func TestRejectAllowsLapsedRecord(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())

	ctx := context.Background()
	record := pendingRecord("alice@example.fr")
	past := time.Now().UTC().Add(-48 * time.Hour)
	record.ExpiresAt = &past

	rejected := *record
	rejected.Status = StatusRejected
	rejected.RejectReason = "montant erroné"

	mockRepo.On("GetByID", ctx, record.ID).Return(record, nil).Once()
	mockRepo.On("MarkRejected", ctx, record.ID, "montant erroné", "", "alice@example.fr").Return(true, nil)
	mockRepo.On("GetByID", ctx, record.ID).Return(&rejected, nil).Once()

	result, err := service.Reject(ctx, record.ID, auth.Actor{Email: "alice@example.fr"}, "montant erroné", "")

	assert.NoError(t, err)
	assert.Equal(t, StatusRejected, result.Status)
	mockRepo.AssertExpectations(t)
}

func TestRejectRequiresReason(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())

	ctx := context.Background()
	record := pendingRecord("alice@example.fr")
	mockRepo.On("GetByID", ctx, record.ID).Return(record, nil)

	_, err := service.Reject(ctx, record.ID, auth.Actor{Email: "alice@example.fr"}, "", "")

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	mockRepo.AssertNotCalled(t, "MarkRejected", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRejectRefusesTerminalRecord(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())

	ctx := context.Background()
	record := pendingRecord("alice@example.fr")
	record.Status = StatusSigned
	mockRepo.On("GetByID", ctx, record.ID).Return(record, nil)

	_, err := service.Reject(ctx, record.ID, auth.Actor{Email: "alice@example.fr"}, "trop tard", "")

	assert.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
}

func TestSignableBoundary(t *testing.T) {
	now := time.Now().UTC()
	record := pendingRecord("alice@example.fr")

	assert.True(t, record.Signable(now), "no expiration means signable")

	record.ExpiresAt = &now
	assert.False(t, record.Signable(now), "expiration instant itself is lapsed")

	later := now.Add(time.Second)
	record.ExpiresAt = &later
	assert.True(t, record.Signable(now))
}

func TestCachedSigningURL(t *testing.T) {
	now := time.Now().UTC()
	record := pendingRecord("alice@example.fr")

	assert.Empty(t, record.CachedSigningURL(now))

	record.SigningURL = "https://sign.example.fr/s/abc"
	assert.Empty(t, record.CachedSigningURL(now), "URL without expiry is not trusted")

	expiry := now.Add(time.Hour)
	record.SigningURLExpiresAt = &expiry
	assert.Equal(t, "https://sign.example.fr/s/abc", record.CachedSigningURL(now))

	stale := now.Add(-time.Hour)
	record.SigningURLExpiresAt = &stale
	assert.Empty(t, record.CachedSigningURL(now))
}
