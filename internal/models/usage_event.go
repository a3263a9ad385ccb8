package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// 凭证来源常量
const (
	CredentialSourcePlatform = "platform"
	CredentialSourceBYOK     = "byok"
)

// 请求结果状态常量
const (
	UsageStatusSuccess             = "success"
	UsageStatusProviderError       = "provider_error"
	UsageStatusNoRoute             = "no_route"
	UsageStatusInsufficientBalance = "insufficient_balance"
	UsageStatusCanceled            = "canceled"
	UsageStatusInternalError       = "internal_error"
)

// UsageEvent 用量事件
// 每次路由请求终态后恰好写入一行，是下游账单导出的事实来源
type UsageEvent struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	RequestID string `gorm:"type:varchar(36);uniqueIndex;not null" json:"request_id"` // 关联 ID (UUID)
	AccountID string `gorm:"type:varchar(100);not null;index:idx_usage_account_created" json:"account_id"`

	ProviderID uint   `gorm:"index" json:"provider_id"` // 失败于路由阶段时为 0
	ModelID    uint   `json:"model_id"`
	ModelName  string `gorm:"type:varchar(100)" json:"model_name"`

	CredentialSource string `gorm:"type:varchar(20)" json:"credential_source"`

	PromptTokens     int             `gorm:"not null;default:0" json:"prompt_tokens"`
	CompletionTokens int             `gorm:"not null;default:0" json:"completion_tokens"`
	Cost             decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"cost"`

	LatencyMs    int64  `gorm:"not null;default:0" json:"latency_ms"`
	Status       string `gorm:"type:varchar(30);not null;index" json:"status"`
	FallbackUsed bool   `gorm:"not null;default:false" json:"fallback_used"`
	ErrorMessage string `gorm:"type:varchar(500)" json:"error_message,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_usage_account_created" json:"created_at"`
}

// TableName 指定表名
func (UsageEvent) TableName() string {
	return "usage_events"
}
