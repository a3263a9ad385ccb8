package registry

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Luminoxx/Arcturus-API/internal/crypto"
	"github.com/Luminoxx/Arcturus-API/internal/models"
)

var (
	// ErrInvalidInput 无效输入
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidURL 无效 URL
	ErrInvalidURL = errors.New("invalid URL")
)

// Service 目录业务逻辑层
// 管理供应商与模型；平台密钥保存前加密，解密只发生在路由内部调用路径
type Service struct {
	repo          *Repository
	cache         *ProviderCache
	encryptionKey []byte
}

// NewService 创建 Service 实例
func NewService(repo *Repository, cache *ProviderCache, encryptionKey []byte) *Service {
	return &Service{
		repo:          repo,
		cache:         cache,
		encryptionKey: encryptionKey,
	}
}

// Cache 暴露快照缓存（路由引擎读取）
func (s *Service) Cache() *ProviderCache {
	return s.cache
}

// ==================== 供应商 ====================

// CreateProvider 创建供应商
func (s *Service) CreateProvider(req CreateProviderRequest) (*models.Provider, error) {
	if err := s.validateProviderRequest(req.Name, req.Slug, req.BaseURL, req.AuthScheme); err != nil {
		return nil, err
	}

	provider := &models.Provider{
		Name:              req.Name,
		Slug:              req.Slug,
		BaseURL:           req.BaseURL,
		AuthScheme:        req.AuthScheme,
		SupportsStreaming: req.SupportsStreaming,
		SupportsFunctions: req.SupportsFunctions,
		SupportsVision:    req.SupportsVision,
		RateLimitRPM:      req.RateLimitRPM,
		IsSystem:          req.IsSystem,
		MinTier:           req.MinTier,
		HealthStatus:      models.HealthStatusUnknown,
	}

	if provider.AuthScheme == "" {
		provider.AuthScheme = models.AuthSchemeBearer
	}
	if provider.MinTier == "" {
		provider.MinTier = models.AccountTierFree
	}
	if req.IsBYOKEligible != nil {
		provider.IsBYOKEligible = *req.IsBYOKEligible
	} else {
		provider.IsBYOKEligible = true
	}
	if req.IsActive != nil {
		provider.IsActive = *req.IsActive
	} else {
		provider.IsActive = true
	}

	// 平台密钥加密后落库
	if req.PlatformKey != "" {
		encrypted, err := crypto.EncryptString(req.PlatformKey, s.encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt platform key: %w", err)
		}
		provider.PlatformKey = encrypted
	}

	if err := s.repo.CreateProvider(provider); err != nil {
		return nil, err
	}

	s.cache.Invalidate()
	return provider, nil
}

// GetProvider 获取单个供应商
func (s *Service) GetProvider(id uint) (*models.Provider, error) {
	return s.repo.FindProviderByID(id)
}

// GetPlatformKey 解密平台密钥（仅路由内部调用路径使用）
func (s *Service) GetPlatformKey(provider *models.Provider) (string, error) {
	if provider.PlatformKey == "" {
		return "", nil
	}
	return crypto.DecryptString(provider.PlatformKey, s.encryptionKey)
}

// ListProviders 获取供应商列表（分页）
func (s *Service) ListProviders(page, pageSize int) ([]*models.Provider, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	return s.repo.FindAllProviders(page, pageSize)
}

// ListActive 列出满足账户档位的启用供应商
func (s *Service) ListActive(accountTier string) ([]*models.Provider, error) {
	providers, err := s.cache.Snapshot()
	if err != nil {
		return nil, err
	}

	var eligible []*models.Provider
	for _, provider := range providers {
		if provider.IsActive && models.TierAtLeast(accountTier, provider.MinTier) {
			eligible = append(eligible, provider)
		}
	}
	return eligible, nil
}

// UpdateProvider 更新供应商
func (s *Service) UpdateProvider(id uint, req UpdateProviderRequest) (*models.Provider, error) {
	provider, err := s.repo.FindProviderByID(id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		provider.Name = *req.Name
	}
	if req.BaseURL != nil {
		if err := s.validateURL(*req.BaseURL); err != nil {
			return nil, err
		}
		provider.BaseURL = *req.BaseURL
	}
	if req.AuthScheme != nil {
		if err := validateAuthScheme(*req.AuthScheme); err != nil {
			return nil, err
		}
		provider.AuthScheme = *req.AuthScheme
	}
	if req.PlatformKey != nil {
		if *req.PlatformKey == "" {
			provider.PlatformKey = ""
		} else {
			encrypted, err := crypto.EncryptString(*req.PlatformKey, s.encryptionKey)
			if err != nil {
				return nil, fmt.Errorf("failed to encrypt platform key: %w", err)
			}
			provider.PlatformKey = encrypted
		}
	}
	if req.SupportsStreaming != nil {
		provider.SupportsStreaming = *req.SupportsStreaming
	}
	if req.SupportsFunctions != nil {
		provider.SupportsFunctions = *req.SupportsFunctions
	}
	if req.SupportsVision != nil {
		provider.SupportsVision = *req.SupportsVision
	}
	if req.RateLimitRPM != nil {
		provider.RateLimitRPM = *req.RateLimitRPM
	}
	if req.IsSystem != nil {
		provider.IsSystem = *req.IsSystem
	}
	if req.IsBYOKEligible != nil {
		provider.IsBYOKEligible = *req.IsBYOKEligible
	}
	if req.MinTier != nil {
		provider.MinTier = *req.MinTier
	}

	if err := s.repo.UpdateProvider(provider); err != nil {
		return nil, err
	}

	s.cache.Invalidate()
	return provider, nil
}

// SetProviderActive 管理员手动启用/禁用供应商
// 手动操作会清除 disabled_by_monitor 标记，监控不会再自动恢复
func (s *Service) SetProviderActive(id uint, active bool) error {
	if err := s.repo.SetProviderActive(id, active, false); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

// DeleteProvider 删除供应商
func (s *Service) DeleteProvider(id uint) error {
	if err := s.repo.DeleteProvider(id); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

// ==================== 模型 ====================

// CreateModel 创建模型
func (s *Service) CreateModel(req CreateModelRequest) (*models.Model, error) {
	if strings.TrimSpace(req.ModelID) == "" {
		return nil, fmt.Errorf("%w: model_id is required", ErrInvalidInput)
	}

	// 所属供应商必须存在
	if _, err := s.repo.FindProviderByID(req.ProviderID); err != nil {
		return nil, err
	}

	model := &models.Model{
		ProviderID:           req.ProviderID,
		ModelID:              req.ModelID,
		DisplayName:          req.DisplayName,
		ContextWindow:        req.ContextWindow,
		InputCostPerMillion:  req.InputCostPerMillion,
		OutputCostPerMillion: req.OutputCostPerMillion,
		SupportsStreaming:    req.SupportsStreaming,
		SupportsFunctions:    req.SupportsFunctions,
		SupportsVision:       req.SupportsVision,
		PowerTier:            req.PowerTier,
		MinTier:              req.MinTier,
	}

	if model.PowerTier == "" {
		model.PowerTier = models.PowerTierBalanced
	}
	if model.MinTier == "" {
		model.MinTier = models.AccountTierFree
	}
	if req.IsActive != nil {
		model.IsActive = *req.IsActive
	} else {
		model.IsActive = true
	}

	if err := s.repo.CreateModel(model); err != nil {
		return nil, err
	}

	return model, nil
}

// GetModel 获取单个模型
func (s *Service) GetModel(id uint) (*models.Model, error) {
	return s.repo.FindModelByID(id)
}

// ListModels 获取模型列表（分页）
func (s *Service) ListModels(page, pageSize int) ([]*models.Model, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}

	return s.repo.FindAllModels(page, pageSize)
}

// UpdateModel 更新模型
func (s *Service) UpdateModel(id uint, req UpdateModelRequest) (*models.Model, error) {
	model, err := s.repo.FindModelByID(id)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		model.DisplayName = *req.DisplayName
	}
	if req.ContextWindow != nil {
		model.ContextWindow = *req.ContextWindow
	}
	if req.InputCostPerMillion != nil {
		model.InputCostPerMillion = *req.InputCostPerMillion
	}
	if req.OutputCostPerMillion != nil {
		model.OutputCostPerMillion = *req.OutputCostPerMillion
	}
	if req.SupportsStreaming != nil {
		model.SupportsStreaming = *req.SupportsStreaming
	}
	if req.SupportsFunctions != nil {
		model.SupportsFunctions = *req.SupportsFunctions
	}
	if req.SupportsVision != nil {
		model.SupportsVision = *req.SupportsVision
	}
	if req.PowerTier != nil {
		model.PowerTier = *req.PowerTier
	}
	if req.MinTier != nil {
		model.MinTier = *req.MinTier
	}
	if req.IsActive != nil {
		model.IsActive = *req.IsActive
	}
	if req.Deprecated != nil {
		model.Deprecated = *req.Deprecated
	}
	if req.ReplacedByID != nil {
		model.ReplacedByID = req.ReplacedByID
	}

	if err := s.repo.UpdateModel(model); err != nil {
		return nil, err
	}

	return model, nil
}

// DeleteModel 删除模型
func (s *Service) DeleteModel(id uint) error {
	return s.repo.DeleteModel(id)
}

// ==================== 校验 ====================

// validateProviderRequest 验证创建请求
func (s *Service) validateProviderRequest(name, slug, baseURL, authScheme string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(slug) == "" {
		return fmt.Errorf("%w: slug is required", ErrInvalidInput)
	}
	if authScheme != "" {
		if err := validateAuthScheme(authScheme); err != nil {
			return err
		}
	}
	return s.validateURL(baseURL)
}

// validateURL 验证 URL 格式
func (s *Service) validateURL(urlStr string) error {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%w: URL must be http or https", ErrInvalidURL)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%w: URL must have a host", ErrInvalidURL)
	}

	if strings.HasSuffix(urlStr, "/") {
		return fmt.Errorf("%w: base_url should not end with /", ErrInvalidURL)
	}

	return nil
}

// validateAuthScheme 验证认证方式
func validateAuthScheme(scheme string) error {
	switch scheme {
	case models.AuthSchemeBearer, models.AuthSchemeAPIKey:
		return nil
	default:
		return fmt.Errorf("%w: unsupported auth scheme %q", ErrInvalidInput, scheme)
	}
}
