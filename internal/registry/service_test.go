package registry

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Luminoxx/Arcturus-API/internal/crypto"
	"github.com/Luminoxx/Arcturus-API/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Provider{}, &models.Model{})
	require.NoError(t, err)

	return db
}

func setupService(t *testing.T) *Service {
	db := setupTestDB(t)
	repo := NewRepository(db)
	cache := NewProviderCache(repo, 0)
	return NewService(repo, cache, []byte("0123456789abcdef0123456789abcdef"))
}

func TestService_CreateProvider(t *testing.T) {
	service := setupService(t)

	provider, err := service.CreateProvider(CreateProviderRequest{
		Name:        "OpenAI",
		Slug:        "openai",
		BaseURL:     "https://api.openai.com",
		AuthScheme:  models.AuthSchemeBearer,
		PlatformKey: "sk-platform-1234567890abcdef",
	})
	require.NoError(t, err)

	assert.NotZero(t, provider.ID)
	assert.Equal(t, "openai", provider.Slug)
	assert.Equal(t, models.HealthStatusUnknown, provider.HealthStatus)
	assert.True(t, provider.IsActive)
	// 平台密钥落库前必须加密
	assert.NotEqual(t, "sk-platform-1234567890abcdef", provider.PlatformKey)

	decrypted, err := crypto.DecryptString(provider.PlatformKey, []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	assert.Equal(t, "sk-platform-1234567890abcdef", decrypted)
}

// 显式传入的 false 写入后原样读回，不被列默认值顶替
func TestService_CreateProvider_InactiveNotOverridden(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	service := NewService(repo, NewProviderCache(repo, 0), []byte("0123456789abcdef0123456789abcdef"))

	inactive := false
	provider, err := service.CreateProvider(CreateProviderRequest{
		Name:           "Paused",
		Slug:           "paused",
		BaseURL:        "https://paused.example.com",
		IsActive:       &inactive,
		IsBYOKEligible: &inactive,
	})
	require.NoError(t, err)

	var stored models.Provider
	require.NoError(t, db.First(&stored, provider.ID).Error)
	assert.False(t, stored.IsActive)
	assert.False(t, stored.IsBYOKEligible)
}

func TestService_CreateModel_InactiveNotOverridden(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	service := NewService(repo, NewProviderCache(repo, 0), []byte("0123456789abcdef0123456789abcdef"))

	provider, err := service.CreateProvider(CreateProviderRequest{
		Name: "P", Slug: "p", BaseURL: "https://p.example.com",
	})
	require.NoError(t, err)

	inactive := false
	model, err := service.CreateModel(CreateModelRequest{
		ProviderID:    provider.ID,
		ModelID:       "paused-model",
		ContextWindow: 8192,
		PowerTier:     models.PowerTierBalanced,
		IsActive:      &inactive,
	})
	require.NoError(t, err)

	var stored models.Model
	require.NoError(t, db.First(&stored, model.ID).Error)
	assert.False(t, stored.IsActive)
}

func TestService_CreateProvider_DuplicateSlug(t *testing.T) {
	service := setupService(t)

	_, err := service.CreateProvider(CreateProviderRequest{
		Name: "First", Slug: "dup", BaseURL: "https://a.example.com",
	})
	require.NoError(t, err)

	_, err = service.CreateProvider(CreateProviderRequest{
		Name: "Second", Slug: "dup", BaseURL: "https://b.example.com",
	})
	assert.ErrorIs(t, err, ErrProviderSlugExists)
}

func TestService_CreateProvider_InvalidURL(t *testing.T) {
	service := setupService(t)

	_, err := service.CreateProvider(CreateProviderRequest{
		Name: "Bad", Slug: "bad", BaseURL: "not-a-url",
	})
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestService_GetPlatformKey(t *testing.T) {
	service := setupService(t)

	provider, err := service.CreateProvider(CreateProviderRequest{
		Name: "OpenAI", Slug: "openai", BaseURL: "https://api.openai.com",
		PlatformKey: "sk-platform-1234567890abcdef",
	})
	require.NoError(t, err)

	key, err := service.GetPlatformKey(provider)
	require.NoError(t, err)
	assert.Equal(t, "sk-platform-1234567890abcdef", key)
}

func TestService_SetProviderActive_ClearsMonitorFlag(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	cache := NewProviderCache(repo, 0)
	service := NewService(repo, cache, []byte("0123456789abcdef0123456789abcdef"))

	provider, err := service.CreateProvider(CreateProviderRequest{
		Name: "OpenAI", Slug: "openai", BaseURL: "https://api.openai.com",
	})
	require.NoError(t, err)

	// 模拟监控自动禁用
	require.NoError(t, repo.SetProviderActive(provider.ID, false, true))
	disabled, err := repo.FindProviderByID(provider.ID)
	require.NoError(t, err)
	assert.False(t, disabled.IsActive)
	assert.True(t, disabled.DisabledByMonitor)

	// 管理员手动启用后监控标记被清除
	require.NoError(t, service.SetProviderActive(provider.ID, true))
	enabled, err := repo.FindProviderByID(provider.ID)
	require.NoError(t, err)
	assert.True(t, enabled.IsActive)
	assert.False(t, enabled.DisabledByMonitor)
}

func TestService_ListActive_FiltersByTier(t *testing.T) {
	service := setupService(t)

	_, err := service.CreateProvider(CreateProviderRequest{
		Name: "Free Provider", Slug: "free-p", BaseURL: "https://free.example.com",
	})
	require.NoError(t, err)

	_, err = service.CreateProvider(CreateProviderRequest{
		Name: "Pro Provider", Slug: "pro-p", BaseURL: "https://pro.example.com",
		MinTier: models.AccountTierPro,
	})
	require.NoError(t, err)

	free, err := service.ListActive(models.AccountTierFree)
	require.NoError(t, err)
	assert.Len(t, free, 1)
	assert.Equal(t, "free-p", free[0].Slug)

	pro, err := service.ListActive(models.AccountTierPro)
	require.NoError(t, err)
	assert.Len(t, pro, 2)
}

func TestService_CreateModel(t *testing.T) {
	service := setupService(t)

	provider, err := service.CreateProvider(CreateProviderRequest{
		Name: "OpenAI", Slug: "openai", BaseURL: "https://api.openai.com",
	})
	require.NoError(t, err)

	model, err := service.CreateModel(CreateModelRequest{
		ProviderID:           provider.ID,
		ModelID:              "gpt-4o",
		DisplayName:          "GPT-4o",
		ContextWindow:        128000,
		InputCostPerMillion:  decimal.NewFromFloat(2.5),
		OutputCostPerMillion: decimal.NewFromFloat(10),
		PowerTier:            models.PowerTierPrecision,
	})
	require.NoError(t, err)
	assert.NotZero(t, model.ID)

	// 同一供应商下模型标识唯一
	_, err = service.CreateModel(CreateModelRequest{
		ProviderID: provider.ID,
		ModelID:    "gpt-4o",
	})
	assert.ErrorIs(t, err, ErrModelExists)
}

func TestService_DeleteProvider_NotFound(t *testing.T) {
	service := setupService(t)

	err := service.DeleteProvider(9999)
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestModel_CostFor(t *testing.T) {
	model := &models.Model{
		InputCostPerMillion:  decimal.NewFromFloat(2),
		OutputCostPerMillion: decimal.NewFromFloat(10),
	}

	// 1M 输入 + 0.5M 输出 = 2 + 5
	cost := model.CostFor(1_000_000, 500_000)
	assert.True(t, cost.Equal(decimal.NewFromFloat(7)), "cost = %s", cost)

	// 零用量零成本
	assert.True(t, model.CostFor(0, 0).IsZero())
}
