package models

import (
	"time"

	"gorm.io/gorm"
)

// 供应商健康状态常量
const (
	HealthStatusHealthy  = "healthy"
	HealthStatusDegraded = "degraded"
	HealthStatusDown     = "down"
	HealthStatusUnknown  = "unknown"
)

// 认证方式常量
const (
	AuthSchemeBearer = "bearer"    // Authorization: Bearer <key>
	AuthSchemeAPIKey = "x-api-key" // x-api-key: <key>
)

// Provider 供应商模型
// 用于存储上游推理服务供应商的配置与健康信息
type Provider struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"type:varchar(100);not null" json:"name"`
	Slug       string `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	BaseURL    string `gorm:"type:varchar(255);not null" json:"base_url"`
	AuthScheme string `gorm:"type:varchar(20);not null;default:'bearer'" json:"auth_scheme"`

	// 平台出资的密钥（加密存储），为空表示该供应商仅支持 BYOK
	PlatformKey string `gorm:"type:text" json:"-"`

	// 能力标识
	SupportsStreaming bool `gorm:"not null;default:false" json:"supports_streaming"`
	SupportsFunctions bool `gorm:"not null;default:false" json:"supports_functions"`
	SupportsVision    bool `gorm:"not null;default:false" json:"supports_vision"`

	RateLimitRPM int `gorm:"not null;default:0" json:"rate_limit_rpm"` // 0 表示不限

	IsSystem       bool   `gorm:"not null;default:false" json:"is_system"`       // 平台核心供应商，健康监控不得自动禁用
	IsBYOKEligible bool   `gorm:"not null" json:"is_byok_eligible"` // 是否允许用户自带密钥
	MinTier        string `gorm:"type:varchar(20);not null;default:'free'" json:"min_tier"`

	// is_active 可由管理员手动翻转；disabled_by_monitor 仅由健康监控写入。
	// 两者独立记录，监控恢复时不得撤销管理员的手动禁用
	IsActive          bool `gorm:"not null" json:"is_active"`
	DisabledByMonitor bool `gorm:"not null;default:false" json:"disabled_by_monitor"`

	// 健康字段，仅由健康监控写入
	HealthStatus  string     `gorm:"type:varchar(20);not null;default:'unknown'" json:"health_status"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	LastLatencyMs int64      `gorm:"not null;default:0" json:"last_latency_ms"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"` // 软删除支持
}

// TableName 指定表名
func (Provider) TableName() string {
	return "providers"
}
