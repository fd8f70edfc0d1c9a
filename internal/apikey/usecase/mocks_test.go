package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	agentDomain "github.com/allisson/agentauth/internal/agent/domain"
	apikeyDomain "github.com/allisson/agentauth/internal/apikey/domain"
)

type mockAPIKeyRepository struct {
	mock.Mock
}

func (m *mockAPIKeyRepository) Create(ctx context.Context, key *apikeyDomain.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockAPIKeyRepository) Update(ctx context.Context, key *apikeyDomain.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockAPIKeyRepository) GetForTenant(ctx context.Context, keyID, tenantID uuid.UUID) (*apikeyDomain.APIKey, error) {
	args := m.Called(ctx, keyID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apikeyDomain.APIKey), args.Error(1)
}

func (m *mockAPIKeyRepository) ListActiveByPrefix(ctx context.Context, keyPrefix string) ([]*apikeyDomain.APIKey, error) {
	args := m.Called(ctx, keyPrefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*apikeyDomain.APIKey), args.Error(1)
}

func (m *mockAPIKeyRepository) List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*apikeyDomain.APIKey, error) {
	args := m.Called(ctx, tenantID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*apikeyDomain.APIKey), args.Error(1)
}

func (m *mockAPIKeyRepository) UpdateLastUsed(ctx context.Context, keyID uuid.UUID, usedAt time.Time) error {
	args := m.Called(ctx, keyID, usedAt)
	return args.Error(0)
}

type mockUsageLogRepository struct {
	mock.Mock
}

func (m *mockUsageLogRepository) Create(ctx context.Context, log *apikeyDomain.UsageLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *mockUsageLogRepository) CountAdmittedSince(ctx context.Context, keyID uuid.UUID, since time.Time) (int, error) {
	args := m.Called(ctx, keyID, since)
	return args.Int(0), args.Error(1)
}

func (m *mockUsageLogRepository) ListByKey(ctx context.Context, keyID uuid.UUID, offset, limit int) ([]*apikeyDomain.UsageLog, error) {
	args := m.Called(ctx, keyID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*apikeyDomain.UsageLog), args.Error(1)
}

type mockAgentRepository struct {
	mock.Mock
}

func (m *mockAgentRepository) Create(ctx context.Context, agent *agentDomain.Agent) error {
	args := m.Called(ctx, agent)
	return args.Error(0)
}

func (m *mockAgentRepository) Update(ctx context.Context, agent *agentDomain.Agent) error {
	args := m.Called(ctx, agent)
	return args.Error(0)
}

func (m *mockAgentRepository) GetForTenant(ctx context.Context, agentID, tenantID uuid.UUID) (*agentDomain.Agent, error) {
	args := m.Called(ctx, agentID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*agentDomain.Agent), args.Error(1)
}

func (m *mockAgentRepository) List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]*agentDomain.Agent, error) {
	args := m.Called(ctx, tenantID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*agentDomain.Agent), args.Error(1)
}

type mockSecretService struct {
	mock.Mock
}

func (m *mockSecretService) GenerateSecret() (string, string, string, error) {
	args := m.Called()
	return args.String(0), args.String(1), args.String(2), args.Error(3)
}

func (m *mockSecretService) HashSecret(plainSecret string) (string, error) {
	args := m.Called(plainSecret)
	return args.String(0), args.Error(1)
}

func (m *mockSecretService) CompareSecret(plainSecret, hashedSecret string) bool {
	args := m.Called(plainSecret, hashedSecret)
	return args.Bool(0)
}

func (m *mockSecretService) Prefix(plainSecret string) string {
	args := m.Called(plainSecret)
	return args.String(0)
}

// stubTxManager runs the function directly without a database transaction.
type stubTxManager struct{}

func (s *stubTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
