package routing

import (
	"errors"

	"github.com/Luminoxx/Arcturus-API/internal/models"
	"gorm.io/gorm"
)

// ErrRuleNotFound 路由规则不存在
var ErrRuleNotFound = errors.New("routing rule not found")

// Repository 路由规则数据访问层
// 路由引擎只读；写入来自管理接口
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建 Repository 实例
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindMatching 查找匹配 (算力档位, 账户档位, 任务类型) 的启用规则
// 预加载模型与供应商，按回退顺序排序
func (r *Repository) FindMatching(powerTier, accountTier, taskType string) ([]*models.RoutingRule, error) {
	var rules []*models.RoutingRule
	err := r.db.Preload("Model").Preload("Model.Provider").
		Where("power_tier = ? AND account_tier = ? AND task_type = ? AND enabled = ?",
			powerTier, accountTier, taskType, true).
		Order("priority ASC, weight DESC, id ASC").
		Find(&rules).Error
	return rules, err
}

// Create 创建路由规则
func (r *Repository) Create(rule *models.RoutingRule) error {
	return r.db.Omit("Model").Create(rule).Error
}

// FindByID 根据 ID 查找规则
func (r *Repository) FindByID(id uint) (*models.RoutingRule, error) {
	var rule models.RoutingRule
	err := r.db.Preload("Model").First(&rule, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// FindAll 查找所有规则（分页）
func (r *Repository) FindAll(page, pageSize int) ([]*models.RoutingRule, int64, error) {
	var rules []*models.RoutingRule
	var total int64

	if err := r.db.Model(&models.RoutingRule{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.db.Preload("Model").Offset(offset).Limit(pageSize).Order("id ASC").Find(&rules).Error
	if err != nil {
		return nil, 0, err
	}

	return rules, total, nil
}

// Update 更新规则
func (r *Repository) Update(rule *models.RoutingRule) error {
	return r.db.Save(rule).Error
}

// Delete 删除规则
func (r *Repository) Delete(id uint) error {
	result := r.db.Delete(&models.RoutingRule{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}
