package models

import "time"

// SystemEvent 系统事件日志
// 用于记录系统重要事件，如健康状态变迁、自动禁用、故障转移、额度分配等
type SystemEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"type:varchar(50);not null;index" json:"type"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Level     string    `gorm:"type:varchar(20);not null;default:'info'" json:"level"` // info, warning, error
	Metadata  string    `gorm:"type:json" json:"metadata,omitempty"`                   // 额外的元数据（JSON 格式）
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (SystemEvent) TableName() string {
	return "system_events"
}

// EventType 事件类型常量
const (
	EventTypeHealthTransition  = "health_transition"  // 健康状态变迁
	EventTypeProviderDisabled  = "provider_disabled"  // 监控自动禁用
	EventTypeProviderRecovered = "provider_recovered" // 监控自动恢复
	EventTypeFailover          = "failover"           // 请求内故障转移
	EventTypeCreditAllocation  = "credit_allocation"  // 额度分配
	EventTypeCreditRefund      = "credit_refund"      // 退款
	EventTypeConfigChange      = "config_change"      // 配置变更

	EventTypeMeteringAnomaly       = "metering_anomaly"       // 扣费或用量落库异常
	EventTypeCredentialInvalidated = "credential_invalidated" // BYOK 凭证被供应商拒绝
)

// EventLevel 事件级别常量
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)
