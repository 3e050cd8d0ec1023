package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, s *Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockRepository) Get(ctx context.Context, tokenHash string) (*Session, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *MockRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newService(repo Repository) *Service {
	s := NewService(repo, slog.Default(), time.Hour)
	s.clock = func() time.Time { return fixedNow }
	return s
}

func TestService_Create(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newService(mockRepo)

	var saved *Session
	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(s *Session) bool {
		saved = s
		return s.OrganizationID == "org-1" && s.MemberID == "m-1" && s.Role == "editor" && s.DeviceID == "dev-1"
	})).Return(nil)

	token, expiresAt, err := service.Create(context.Background(), "org-1", "m-1", "editor", "dev-1")
	require.NoError(t, err)

	// base64 от 32 байт с паддингом
	assert.Len(t, token, 44)
	assert.Equal(t, fixedNow.Add(time.Hour), expiresAt)
	require.NotNil(t, saved)
	assert.Equal(t, Hash(token), saved.TokenHash)
	assert.NotContains(t, saved.TokenHash, token)

	mockRepo.AssertExpectations(t)
}

func TestService_Create_RepositoryError(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newService(mockRepo)

	mockRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("database error"))

	_, _, err := service.Create(context.Background(), "org-1", "m-1", "editor", "dev-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database error")
}

func TestService_Validate(t *testing.T) {
	live := &Session{TokenHash: Hash("good"), OrganizationID: "org-1", ExpiresAt: fixedNow.Add(time.Minute)}
	expired := &Session{TokenHash: Hash("old"), OrganizationID: "org-1", ExpiresAt: fixedNow}

	tests := []struct {
		name    string
		token   string
		setup   func(*MockRepository)
		want    *Session
		wantErr error
	}{
		{
			name:  "live session",
			token: "good",
			setup: func(r *MockRepository) { r.On("Get", mock.Anything, Hash("good")).Return(live, nil) },
			want:  live,
		},
		{
			name:    "expired session",
			token:   "old",
			setup:   func(r *MockRepository) { r.On("Get", mock.Anything, Hash("old")).Return(expired, nil) },
			wantErr: ErrInvalidSession,
		},
		{
			name:    "unknown token",
			token:   "nope",
			setup:   func(r *MockRepository) { r.On("Get", mock.Anything, Hash("nope")).Return(nil, ErrNotFound) },
			wantErr: ErrInvalidSession,
		},
		{
			name:    "empty token",
			token:   "",
			setup:   func(r *MockRepository) {},
			wantErr: ErrInvalidSession,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			tt.setup(mockRepo)
			service := newService(mockRepo)

			got, err := service.Validate(context.Background(), tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_PurgeExpired(t *testing.T) {
	mockRepo := new(MockRepository)
	service := newService(mockRepo)

	mockRepo.On("DeleteExpired", mock.Anything, fixedNow).Return(int64(4), nil)

	n, err := service.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
