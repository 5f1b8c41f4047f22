package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Arashek/ADE-stable-1.0-sub004/config"
	"github.com/Arashek/ADE-stable-1.0-sub004/internal/cipher"
	"github.com/Arashek/ADE-stable-1.0-sub004/models"
	"github.com/Arashek/ADE-stable-1.0-sub004/repositories"
	"github.com/Arashek/ADE-stable-1.0-sub004/services/providers"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.New()
	require.NoError(t, err)
	return cfg
}

func TestNewDependencies_WithoutPersistence(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cfg := testConfig(t)

	deps, err := NewDependencies(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer deps.Close(context.Background())

	assert.Nil(t, deps.Store)
	assert.Nil(t, deps.DB)
	assert.NotNil(t, deps.Registry)
	assert.NotNil(t, deps.Monitor)
	assert.NotNil(t, deps.Tracker)
	assert.NotNil(t, deps.Breakers)

	// the local builder is registered by default, so a provider can be
	// added end to end without any external service
	inst, err := deps.Registry.RegisterProvider(context.Background(), registerLocal())
	require.NoError(t, err)
	assert.Equal(t, models.StatusHealthy, inst.Status)

	restored, err := deps.RestoreProviders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, restored)
}

func TestDependencies_ProbeOutcomesReachSelection(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cfg := testConfig(t)

	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" && healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	deps, err := NewDependencies(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer deps.Close(context.Background())

	opts := registerLocal()
	opts.Endpoint = srv.URL
	inst, err := deps.Registry.RegisterProvider(context.Background(), opts)
	require.NoError(t, err)

	// a failing health endpoint takes the provider out of selection
	deps.Monitor.CheckNow(context.Background())
	got, err := deps.Registry.Instance(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnhealthy, got.Status)
	_, err = deps.Registry.InstanceForCapability("chat", providers.SelectOptions{})
	require.Error(t, err)

	// a recovering endpoint brings it back
	healthy.Store(true)
	deps.Monitor.CheckNow(context.Background())
	sel, err := deps.Registry.InstanceForCapability("chat", providers.SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, inst.ID, sel.Instance.ID)
}

func TestRestoreProviders(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	cfg := testConfig(t)

	deps, err := NewDependencies(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer deps.Close(context.Background())

	// wire a store by hand; initStore skipped it without a credential key
	store := &memStore{}
	deps.Store = store
	deps.Cipher = cipher.Noop{}
	deps.initCore(cfg)
	deps.initBuilders(cfg)

	now := time.Now()
	store.records = []*models.ProviderRecord{
		{
			ID:                  uuid.New(),
			InstanceID:          "local-old",
			Type:                "local",
			EncryptedCredential: "token",
			CapabilityScores:    map[string]float64{"chat": 0.8},
			CreatedAt:           now,
			UpdatedAt:           now,
		},
		{
			ID:                  uuid.New(),
			InstanceID:          "unknown-old",
			Type:                "unknown-type",
			EncryptedCredential: "token",
			CapabilityScores:    map[string]float64{"chat": 0.8},
			CreatedAt:           now,
			UpdatedAt:           now,
		},
	}

	restored, err := deps.RestoreProviders(context.Background())
	require.NoError(t, err)
	// the unknown type is skipped, not fatal
	assert.Equal(t, 1, restored)
	assert.Equal(t, 1, deps.Registry.Len())
}

func registerLocal() providers.RegisterOptions {
	return providers.RegisterOptions{
		Type:             "local",
		Credential:       "local-token",
		CapabilityScores: map[string]float64{"chat": 0.8, "general": 0.6},
	}
}

// memStore is an in-memory ProviderStore for restore tests
type memStore struct {
	records []*models.ProviderRecord
}

func (s *memStore) List(context.Context, repositories.ProviderFilter) ([]*models.ProviderRecord, error) {
	return s.records, nil
}

func (s *memStore) GetByID(context.Context, uuid.UUID) (*models.ProviderRecord, error) {
	return nil, nil
}

func (s *memStore) Create(_ context.Context, record *models.ProviderRecord) error {
	s.records = append(s.records, record)
	return nil
}

func (s *memStore) Update(context.Context, uuid.UUID, *models.ProviderRecord) error { return nil }

func (s *memStore) Delete(context.Context, uuid.UUID) error { return nil }
