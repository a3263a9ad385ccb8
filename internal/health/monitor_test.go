package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Luminoxx/Arcturus-API/internal/events"
	"github.com/Luminoxx/Arcturus-API/internal/models"
	"github.com/Luminoxx/Arcturus-API/internal/registry"
)

type monitorFixture struct {
	monitor *Monitor
	repo    *registry.Repository
	events  *events.Service
}

func setupMonitor(t *testing.T) *monitorFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Provider{}, &models.Model{}, &models.SystemEvent{}))

	repo := registry.NewRepository(db)
	cache := registry.NewProviderCache(repo, 0)
	service := registry.NewService(repo, cache, []byte("0123456789abcdef0123456789abcdef"))
	eventService := events.NewService(db)
	checker := NewChecker(time.Second, 500*time.Millisecond)

	return &monitorFixture{
		monitor: NewMonitor(service, repo, checker, eventService, time.Minute),
		repo:    repo,
		events:  eventService,
	}
}

func createProvider(t *testing.T, repo *registry.Repository, baseURL string, mutate func(*models.Provider)) *models.Provider {
	t.Helper()
	provider := &models.Provider{
		Name:         "Probe Target",
		Slug:         "probe-" + t.Name(),
		BaseURL:      baseURL,
		AuthScheme:   models.AuthSchemeBearer,
		IsActive:     true,
		HealthStatus: models.HealthStatusUnknown,
		MinTier:      models.AccountTierFree,
	}
	if mutate != nil {
		mutate(provider)
	}
	require.NoError(t, repo.CreateProvider(provider))
	return provider
}

func TestMonitor_DownProviderAutoDisabled(t *testing.T) {
	fixture := setupMonitor(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	provider := createProvider(t, fixture.repo, server.URL, nil)

	_, err := fixture.monitor.CheckProvider(context.Background(), provider.ID)
	require.NoError(t, err)

	updated, err := fixture.repo.FindProviderByID(provider.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HealthStatusDown, updated.HealthStatus)
	assert.False(t, updated.IsActive)
	assert.True(t, updated.DisabledByMonitor)

	disabledEvents, err := fixture.events.GetEventsByType(models.EventTypeProviderDisabled, 10)
	require.NoError(t, err)
	assert.Len(t, disabledEvents, 1)
}

func TestMonitor_SystemProviderNeverAutoDisabled(t *testing.T) {
	fixture := setupMonitor(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	provider := createProvider(t, fixture.repo, server.URL, func(p *models.Provider) {
		p.IsSystem = true
	})

	_, err := fixture.monitor.CheckProvider(context.Background(), provider.ID)
	require.NoError(t, err)

	updated, err := fixture.repo.FindProviderByID(provider.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HealthStatusDown, updated.HealthStatus)
	assert.True(t, updated.IsActive)
	assert.False(t, updated.DisabledByMonitor)
}

func TestMonitor_RecoveryReenablesMonitorDisabled(t *testing.T) {
	fixture := setupMonitor(t)

	var healthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	provider := createProvider(t, fixture.repo, server.URL, nil)

	// 第一轮：down，自动禁用
	_, err := fixture.monitor.CheckProvider(context.Background(), provider.ID)
	require.NoError(t, err)

	// 第二轮：恢复 healthy，监控自己禁用的供应商被重新启用
	healthy.Store(true)
	_, err = fixture.monitor.CheckProvider(context.Background(), provider.ID)
	require.NoError(t, err)

	updated, err := fixture.repo.FindProviderByID(provider.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HealthStatusHealthy, updated.HealthStatus)
	assert.True(t, updated.IsActive)
	assert.False(t, updated.DisabledByMonitor)

	recovered, err := fixture.events.GetEventsByType(models.EventTypeProviderRecovered, 10)
	require.NoError(t, err)
	assert.Len(t, recovered, 1)
}

func TestMonitor_ManualDisableNotReenabled(t *testing.T) {
	fixture := setupMonitor(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	provider := createProvider(t, fixture.repo, server.URL, nil)

	// 管理员手动禁用（byMonitor=false）
	require.NoError(t, fixture.repo.SetProviderActive(provider.ID, false, false))

	// 探测 healthy 也不得撤销手动禁用
	_, err := fixture.monitor.CheckProvider(context.Background(), provider.ID)
	require.NoError(t, err)

	updated, err := fixture.repo.FindProviderByID(provider.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HealthStatusHealthy, updated.HealthStatus)
	assert.False(t, updated.IsActive)
	assert.False(t, updated.DisabledByMonitor)
}

func TestMonitor_CheckAllSweepsEveryProvider(t *testing.T) {
	fixture := setupMonitor(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	first := createProvider(t, fixture.repo, server.URL, func(p *models.Provider) { p.Slug = "sweep-a" })
	second := createProvider(t, fixture.repo, server.URL, func(p *models.Provider) { p.Slug = "sweep-b" })

	fixture.monitor.CheckAll(context.Background())

	assert.Equal(t, int32(2), calls.Load())
	for _, id := range []uint{first.ID, second.ID} {
		updated, err := fixture.repo.FindProviderByID(id)
		require.NoError(t, err)
		assert.Equal(t, models.HealthStatusHealthy, updated.HealthStatus)
		assert.NotNil(t, updated.LastCheckedAt)
	}
}
