package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 算力档位常量
const (
	PowerTierEconomy   = "economy"
	PowerTierBalanced  = "balanced"
	PowerTierPrecision = "precision"
)

// 账户档位常量
const (
	AccountTierFree       = "free"
	AccountTierPro        = "pro"
	AccountTierEnterprise = "enterprise"
)

// tierRank 账户档位的大小关系
var tierRank = map[string]int{
	AccountTierFree:       0,
	AccountTierPro:        1,
	AccountTierEnterprise: 2,
}

// TierAtLeast 判断账户档位是否满足最低档位要求
// 未知档位按最低档处理
func TierAtLeast(tier, minTier string) bool {
	return tierRank[tier] >= tierRank[minTier]
}

// Model 上游模型
// 记录供应商暴露的具体模型及其成本、能力与档位信息
type Model struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ProviderID  uint   `gorm:"not null;index;uniqueIndex:idx_provider_model" json:"provider_id"`
	ModelID     string `gorm:"type:varchar(100);not null;uniqueIndex:idx_provider_model" json:"model_id"` // 供应商侧模型标识
	DisplayName string `gorm:"type:varchar(200);not null;default:''" json:"display_name"`

	ContextWindow int `gorm:"not null;default:0" json:"context_window"`

	// 每百万 Token 成本（美元）
	InputCostPerMillion  decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"input_cost_per_million"`
	OutputCostPerMillion decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"output_cost_per_million"`

	// 能力标识
	SupportsStreaming bool `gorm:"not null;default:false" json:"supports_streaming"`
	SupportsFunctions bool `gorm:"not null;default:false" json:"supports_functions"`
	SupportsVision    bool `gorm:"not null;default:false" json:"supports_vision"`

	PowerTier string `gorm:"type:varchar(20);not null;default:'balanced'" json:"power_tier"`
	MinTier   string `gorm:"type:varchar(20);not null;default:'free'" json:"min_tier"`

	IsActive     bool  `gorm:"not null" json:"is_active"`
	Deprecated   bool  `gorm:"not null;default:false" json:"deprecated"`
	ReplacedByID *uint `json:"replaced_by_id,omitempty"` // 弃用后推荐的替代模型

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// 外键关系
	Provider Provider `gorm:"foreignKey:ProviderID;constraint:OnDelete:CASCADE" json:"provider,omitempty"`
}

// TableName 指定表名
func (Model) TableName() string {
	return "llm_models"
}

// CostFor 计算给定 Token 用量的成本（美元）
func (m *Model) CostFor(promptTokens, completionTokens int) decimal.Decimal {
	million := decimal.NewFromInt(1_000_000)
	in := m.InputCostPerMillion.Mul(decimal.NewFromInt(int64(promptTokens))).Div(million)
	out := m.OutputCostPerMillion.Mul(decimal.NewFromInt(int64(completionTokens))).Div(million)
	return in.Add(out)
}
