package vault

import (
	"errors"
	"time"

	"github.com/Luminoxx/Arcturus-API/internal/models"
	"gorm.io/gorm"
)

// ErrKeyNotFound 凭证不存在
var ErrKeyNotFound = errors.New("user provider key not found")

// Repository 用户凭证数据访问层
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建 Repository 实例
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert 保存凭证，(account_id, provider_id) 已存在则覆盖
func (r *Repository) Upsert(key *models.UserProviderKey) error {
	var existing models.UserProviderKey
	err := r.db.Where("account_id = ? AND provider_id = ?", key.AccountID, key.ProviderID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(key).Error
	}
	if err != nil {
		return err
	}

	// 覆盖旧凭证，重置有效性与使用统计
	existing.EncryptedKey = key.EncryptedKey
	existing.KeyPrefix = key.KeyPrefix
	existing.KeySuffix = key.KeySuffix
	existing.IsValid = true
	existing.UseCount = 0
	existing.LastUsedAt = nil
	if err := r.db.Save(&existing).Error; err != nil {
		return err
	}

	*key = existing
	return nil
}

// Find 查找凭证
func (r *Repository) Find(accountID string, providerID uint) (*models.UserProviderKey, error) {
	var key models.UserProviderKey
	err := r.db.Where("account_id = ? AND provider_id = ?", accountID, providerID).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return &key, nil
}

// FindByAccount 查找账户的全部凭证（含供应商信息）
func (r *Repository) FindByAccount(accountID string) ([]*models.UserProviderKey, error) {
	var keys []*models.UserProviderKey
	err := r.db.Preload("Provider").
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&keys).Error
	return keys, err
}

// Delete 删除凭证
// 幂等：记录不存在时同样返回成功
func (r *Repository) Delete(accountID string, providerID uint) error {
	return r.db.Where("account_id = ? AND provider_id = ?", accountID, providerID).
		Delete(&models.UserProviderKey{}).Error
}

// MarkInvalid 标记凭证失效（被供应商拒绝后调用）
func (r *Repository) MarkInvalid(accountID string, providerID uint) error {
	return r.db.Model(&models.UserProviderKey{}).
		Where("account_id = ? AND provider_id = ?", accountID, providerID).
		Update("is_valid", false).Error
}

// RecordUse 记录一次使用
func (r *Repository) RecordUse(accountID string, providerID uint) error {
	now := time.Now()
	return r.db.Model(&models.UserProviderKey{}).
		Where("account_id = ? AND provider_id = ?", accountID, providerID).
		Updates(map[string]interface{}{
			"use_count":    gorm.Expr("use_count + 1"),
			"last_used_at": now,
		}).Error
}
