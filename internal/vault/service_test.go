package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Luminoxx/Arcturus-API/internal/models"
	"github.com/Luminoxx/Arcturus-API/internal/registry"
)

type vaultFixture struct {
	service  *Service
	provider *models.Provider
}

func setupVault(t *testing.T) *vaultFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Provider{}, &models.UserProviderKey{}))

	registryRepo := registry.NewRepository(db)
	provider := &models.Provider{
		Name:           "OpenAI",
		Slug:           "openai",
		BaseURL:        "https://api.openai.com",
		AuthScheme:     models.AuthSchemeBearer,
		IsBYOKEligible: true,
		IsActive:       true,
	}
	require.NoError(t, registryRepo.CreateProvider(provider))

	service := NewService(NewRepository(db), registryRepo, []byte("0123456789abcdef0123456789abcdef"))
	return &vaultFixture{service: service, provider: provider}
}

func TestVault_StoreAndDecrypt(t *testing.T) {
	fixture := setupVault(t)
	plaintext := "sk-user-key-abcdefghijklmnop"

	key, err := fixture.service.Store("acct-1", fixture.provider.ID, plaintext)
	require.NoError(t, err)
	assert.True(t, key.IsValid)
	assert.NotEqual(t, plaintext, key.EncryptedKey)

	decrypted, err := fixture.service.GetDecrypted("acct-1", fixture.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestVault_Store_InvalidFormat(t *testing.T) {
	fixture := setupVault(t)

	// bearer 凭证要求 sk- 前缀
	_, err := fixture.service.Store("acct-1", fixture.provider.ID, "totally-wrong-prefix-key")
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)

	// 前缀正确但太短
	_, err = fixture.service.Store("acct-1", fixture.provider.ID, "sk-short")
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)
}

func TestVault_Store_BYOKNotEligible(t *testing.T) {
	fixture := setupVault(t)

	db := fixture.service.repo.db
	require.NoError(t, db.Model(&models.Provider{}).
		Where("id = ?", fixture.provider.ID).
		Update("is_byok_eligible", false).Error)

	_, err := fixture.service.Store("acct-1", fixture.provider.ID, "sk-user-key-abcdefghijklmnop")
	assert.ErrorIs(t, err, ErrBYOKNotAllowed)
}

func TestVault_Store_OverwriteResetsValidity(t *testing.T) {
	fixture := setupVault(t)

	_, err := fixture.service.Store("acct-1", fixture.provider.ID, "sk-first-key-abcdefghijklmn")
	require.NoError(t, err)

	// 标记失效后覆盖写入，凭证重新生效
	require.NoError(t, fixture.service.MarkInvalid("acct-1", fixture.provider.ID))
	assert.False(t, fixture.service.HasValidKey("acct-1", fixture.provider.ID))

	_, err = fixture.service.Store("acct-1", fixture.provider.ID, "sk-second-key-abcdefghijklm")
	require.NoError(t, err)
	assert.True(t, fixture.service.HasValidKey("acct-1", fixture.provider.ID))

	decrypted, err := fixture.service.GetDecrypted("acct-1", fixture.provider.ID)
	require.NoError(t, err)
	assert.Equal(t, "sk-second-key-abcdefghijklm", decrypted)
}

func TestVault_List_Masked(t *testing.T) {
	fixture := setupVault(t)
	plaintext := "sk-user-key-abcdefghijklmnop"

	_, err := fixture.service.Store("acct-1", fixture.provider.ID, plaintext)
	require.NoError(t, err)

	keys, err := fixture.service.List("acct-1")
	require.NoError(t, err)
	require.Len(t, keys, 1)

	masked := keys[0]
	assert.Equal(t, "OpenAI", masked.ProviderName)
	assert.Equal(t, "sk-user-****mnop", masked.MaskedKey)
	assert.NotContains(t, masked.MaskedKey, plaintext[8:len(plaintext)-4])
}

func TestVault_Delete_Idempotent(t *testing.T) {
	fixture := setupVault(t)

	_, err := fixture.service.Store("acct-1", fixture.provider.ID, "sk-user-key-abcdefghijklmnop")
	require.NoError(t, err)

	require.NoError(t, fixture.service.Delete("acct-1", fixture.provider.ID))
	// 重复删除同样成功
	require.NoError(t, fixture.service.Delete("acct-1", fixture.provider.ID))

	_, err = fixture.service.GetDecrypted("acct-1", fixture.provider.ID)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestVault_GetDecrypted_InvalidKeyHidden(t *testing.T) {
	fixture := setupVault(t)

	_, err := fixture.service.Store("acct-1", fixture.provider.ID, "sk-user-key-abcdefghijklmnop")
	require.NoError(t, err)
	require.NoError(t, fixture.service.MarkInvalid("acct-1", fixture.provider.ID))

	_, err = fixture.service.GetDecrypted("acct-1", fixture.provider.ID)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestVault_RecordUse(t *testing.T) {
	fixture := setupVault(t)

	_, err := fixture.service.Store("acct-1", fixture.provider.ID, "sk-user-key-abcdefghijklmnop")
	require.NoError(t, err)

	require.NoError(t, fixture.service.RecordUse("acct-1", fixture.provider.ID))
	require.NoError(t, fixture.service.RecordUse("acct-1", fixture.provider.ID))

	keys, err := fixture.service.List("acct-1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, int64(2), keys[0].UseCount)
	assert.NotNil(t, keys[0].LastUsedAt)
}
