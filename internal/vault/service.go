package vault

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Luminoxx/Arcturus-API/internal/crypto"
	"github.com/Luminoxx/Arcturus-API/internal/models"
	"github.com/Luminoxx/Arcturus-API/internal/registry"
)

var (
	// ErrInvalidKeyFormat 凭证格式不符合供应商要求
	ErrInvalidKeyFormat = errors.New("invalid credential format")
	// ErrBYOKNotAllowed 供应商不接受用户自带密钥
	ErrBYOKNotAllowed = errors.New("provider is not BYOK eligible")
)

// keyFormat 供应商侧密钥的格式约束
type keyFormat struct {
	prefix    string
	minLength int
}

// keyFormats 按认证方式划分的格式约束
// 凭证先验证格式再加密，格式不符的直接拒绝
var keyFormats = map[string]keyFormat{
	models.AuthSchemeBearer: {prefix: "sk-", minLength: 20},
	models.AuthSchemeAPIKey: {prefix: "sk-ant-", minLength: 24},
}

// MaskedKey 脱敏后的凭证视图
type MaskedKey struct {
	ProviderID   uint       `json:"provider_id"`
	ProviderName string     `json:"provider_name"`
	MaskedKey    string     `json:"masked_key"`
	IsValid      bool       `json:"is_valid"`
	UseCount     int64      `json:"use_count"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Service 凭证保险库
// 用户自带密钥 (BYOK) 的加密存取；明文只通过 GetDecrypted
// 流向路由内部调用路径，任何对外接口只返回脱敏视图
type Service struct {
	repo          *Repository
	registry      *registry.Repository
	encryptionKey []byte
}

// NewService 创建 Service 实例
func NewService(repo *Repository, registryRepo *registry.Repository, encryptionKey []byte) *Service {
	return &Service{
		repo:          repo,
		registry:      registryRepo,
		encryptionKey: encryptionKey,
	}
}

// Store 验证、加密并保存凭证（同一 (account, provider) 对覆盖写入）
func (s *Service) Store(accountID string, providerID uint, plaintextKey string) (*models.UserProviderKey, error) {
	provider, err := s.registry.FindProviderByID(providerID)
	if err != nil {
		return nil, err
	}

	if !provider.IsBYOKEligible {
		return nil, ErrBYOKNotAllowed
	}

	if err := validateKeyFormat(provider.AuthScheme, plaintextKey); err != nil {
		return nil, err
	}

	encrypted, err := crypto.EncryptString(plaintextKey, s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt credential: %w", err)
	}

	key := &models.UserProviderKey{
		AccountID:    accountID,
		ProviderID:   providerID,
		EncryptedKey: encrypted,
		KeyPrefix:    keyPrefix(plaintextKey),
		KeySuffix:    keySuffix(plaintextKey),
		IsValid:      true,
	}

	if err := s.repo.Upsert(key); err != nil {
		return nil, err
	}

	return key, nil
}

// GetDecrypted 解密凭证（仅路由内部调用路径使用）
// 有效凭证不存在时返回 ErrKeyNotFound
func (s *Service) GetDecrypted(accountID string, providerID uint) (string, error) {
	key, err := s.repo.Find(accountID, providerID)
	if err != nil {
		return "", err
	}

	if !key.IsValid {
		return "", ErrKeyNotFound
	}

	return crypto.DecryptString(key.EncryptedKey, s.encryptionKey)
}

// HasValidKey 账户是否持有该供应商的有效凭证
func (s *Service) HasValidKey(accountID string, providerID uint) bool {
	key, err := s.repo.Find(accountID, providerID)
	if err != nil {
		return false
	}
	return key.IsValid
}

// List 列出账户的全部凭证（脱敏）
func (s *Service) List(accountID string) ([]*MaskedKey, error) {
	keys, err := s.repo.FindByAccount(accountID)
	if err != nil {
		return nil, err
	}

	masked := make([]*MaskedKey, len(keys))
	for i, key := range keys {
		masked[i] = &MaskedKey{
			ProviderID:   key.ProviderID,
			ProviderName: key.Provider.Name,
			MaskedKey:    key.KeyPrefix + "****" + key.KeySuffix,
			IsValid:      key.IsValid,
			UseCount:     key.UseCount,
			LastUsedAt:   key.LastUsedAt,
			CreatedAt:    key.CreatedAt,
		}
	}
	return masked, nil
}

// Delete 删除凭证（幂等）
func (s *Service) Delete(accountID string, providerID uint) error {
	return s.repo.Delete(accountID, providerID)
}

// MarkInvalid 标记凭证失效
func (s *Service) MarkInvalid(accountID string, providerID uint) error {
	return s.repo.MarkInvalid(accountID, providerID)
}

// RecordUse 记录凭证被路由使用一次
func (s *Service) RecordUse(accountID string, providerID uint) error {
	return s.repo.RecordUse(accountID, providerID)
}

// validateKeyFormat 按供应商认证方式验证密钥格式
func validateKeyFormat(authScheme, key string) error {
	format, ok := keyFormats[authScheme]
	if !ok {
		// 未知认证方式只做最低长度约束
		if len(strings.TrimSpace(key)) < 16 {
			return fmt.Errorf("%w: key too short", ErrInvalidKeyFormat)
		}
		return nil
	}

	if !strings.HasPrefix(key, format.prefix) {
		return fmt.Errorf("%w: expected prefix %q", ErrInvalidKeyFormat, format.prefix)
	}
	if len(key) < format.minLength {
		return fmt.Errorf("%w: minimum length %d", ErrInvalidKeyFormat, format.minLength)
	}
	return nil
}

// keyPrefix 取脱敏展示用的前缀
func keyPrefix(key string) string {
	if len(key) <= 8 {
		return key[:len(key)/2]
	}
	return key[:8]
}

// keySuffix 取脱敏展示用的后缀
func keySuffix(key string) string {
	if len(key) <= 4 {
		return ""
	}
	return key[len(key)-4:]
}
