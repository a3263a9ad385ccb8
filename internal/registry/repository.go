package registry

import (
	"errors"
	"time"

	"github.com/Luminoxx/Arcturus-API/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrProviderNotFound 供应商不存在
	ErrProviderNotFound = errors.New("provider not found")
	// ErrProviderSlugExists 供应商标识已存在
	ErrProviderSlugExists = errors.New("provider slug already exists")
	// ErrModelNotFound 模型不存在
	ErrModelNotFound = errors.New("model not found")
	// ErrModelExists (provider, model_id) 组合已存在
	ErrModelExists = errors.New("model already exists for this provider")
)

// Repository 供应商/模型目录数据访问层
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建 Repository 实例
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ==================== 供应商 ====================

// CreateProvider 创建供应商
func (r *Repository) CreateProvider(provider *models.Provider) error {
	exists, err := r.providerSlugExists(provider.Slug, 0)
	if err != nil {
		return err
	}
	if exists {
		return ErrProviderSlugExists
	}

	// 使用 Select 明确指定要保存的字段，包括零值字段
	return r.db.Select(
		"Name", "Slug", "BaseURL", "AuthScheme", "PlatformKey",
		"SupportsStreaming", "SupportsFunctions", "SupportsVision",
		"RateLimitRPM", "IsSystem", "IsBYOKEligible", "MinTier",
		"IsActive", "DisabledByMonitor", "HealthStatus",
	).Create(provider).Error
}

// FindProviderByID 根据 ID 查找供应商
func (r *Repository) FindProviderByID(id uint) (*models.Provider, error) {
	var provider models.Provider
	err := r.db.First(&provider, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &provider, nil
}

// FindProviderBySlug 根据标识查找供应商
func (r *Repository) FindProviderBySlug(slug string) (*models.Provider, error) {
	var provider models.Provider
	err := r.db.Where("slug = ?", slug).First(&provider).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &provider, nil
}

// FindAllProviders 查找所有供应商（分页）
func (r *Repository) FindAllProviders(page, pageSize int) ([]*models.Provider, int64, error) {
	var providers []*models.Provider
	var total int64

	if err := r.db.Model(&models.Provider{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.db.Offset(offset).Limit(pageSize).Order("id ASC").Find(&providers).Error
	if err != nil {
		return nil, 0, err
	}

	return providers, total, nil
}

// FindActiveProviders 查找所有启用的供应商
func (r *Repository) FindActiveProviders() ([]*models.Provider, error) {
	var providers []*models.Provider
	err := r.db.Where("is_active = ?", true).Order("id ASC").Find(&providers).Error
	return providers, err
}

// UpdateProvider 更新供应商
func (r *Repository) UpdateProvider(provider *models.Provider) error {
	return r.db.Save(provider).Error
}

// UpdateProviderHealth 更新健康字段（仅健康监控调用）
func (r *Repository) UpdateProviderHealth(id uint, status string, latencyMs int64, checkedAt time.Time) error {
	return r.db.Model(&models.Provider{}).Where("id = ?", id).Updates(map[string]interface{}{
		"health_status":   status,
		"last_latency_ms": latencyMs,
		"last_checked_at": checkedAt,
	}).Error
}

// SetProviderActive 设置启用状态
// byMonitor 为 true 表示健康监控触发，同时维护 disabled_by_monitor 标记；
// 管理员手动操作时清除该标记，避免监控误恢复手动禁用的供应商
func (r *Repository) SetProviderActive(id uint, active bool, byMonitor bool) error {
	updates := map[string]interface{}{
		"is_active": active,
	}
	if byMonitor {
		updates["disabled_by_monitor"] = !active
	} else {
		updates["disabled_by_monitor"] = false
	}

	result := r.db.Model(&models.Provider{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// DeleteProvider 删除供应商（软删除）
func (r *Repository) DeleteProvider(id uint) error {
	result := r.db.Delete(&models.Provider{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

// providerSlugExists 检查标识是否存在（排除指定 ID）
func (r *Repository) providerSlugExists(slug string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.Model(&models.Provider{}).Where("slug = ?", slug)
	if excludeID > 0 {
		query = query.Where("id != ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ==================== 模型 ====================

// CreateModel 创建模型
func (r *Repository) CreateModel(model *models.Model) error {
	var count int64
	err := r.db.Model(&models.Model{}).
		Where("provider_id = ? AND model_id = ?", model.ProviderID, model.ModelID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrModelExists
	}

	return r.db.Select(
		"ProviderID", "ModelID", "DisplayName", "ContextWindow",
		"InputCostPerMillion", "OutputCostPerMillion",
		"SupportsStreaming", "SupportsFunctions", "SupportsVision",
		"PowerTier", "MinTier", "IsActive", "Deprecated", "ReplacedByID",
	).Create(model).Error
}

// FindModelByID 根据 ID 查找模型（含供应商）
func (r *Repository) FindModelByID(id uint) (*models.Model, error) {
	var model models.Model
	err := r.db.Preload("Provider").First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, err
	}
	return &model, nil
}

// FindModelsByProvider 查找供应商下的所有模型
func (r *Repository) FindModelsByProvider(providerID uint) ([]*models.Model, error) {
	var modelList []*models.Model
	err := r.db.Where("provider_id = ?", providerID).Order("id ASC").Find(&modelList).Error
	return modelList, err
}

// FindAllModels 查找所有模型（分页，含供应商）
func (r *Repository) FindAllModels(page, pageSize int) ([]*models.Model, int64, error) {
	var modelList []*models.Model
	var total int64

	if err := r.db.Model(&models.Model{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.db.Preload("Provider").Offset(offset).Limit(pageSize).Order("id ASC").Find(&modelList).Error
	if err != nil {
		return nil, 0, err
	}

	return modelList, total, nil
}

// UpdateModel 更新模型
func (r *Repository) UpdateModel(model *models.Model) error {
	return r.db.Save(model).Error
}

// DeleteModel 删除模型（软删除）
func (r *Repository) DeleteModel(id uint) error {
	result := r.db.Delete(&models.Model{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrModelNotFound
	}
	return nil
}
