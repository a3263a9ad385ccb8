package registry

import (
	"time"

	"github.com/Luminoxx/Arcturus-API/internal/models"
	"github.com/shopspring/decimal"
)

// CreateProviderRequest 创建供应商请求
type CreateProviderRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug" binding:"required"`
	BaseURL     string `json:"base_url" binding:"required"`
	AuthScheme  string `json:"auth_scheme"`
	PlatformKey string `json:"platform_key"` // 保存前加密

	SupportsStreaming bool `json:"supports_streaming"`
	SupportsFunctions bool `json:"supports_functions"`
	SupportsVision    bool `json:"supports_vision"`

	RateLimitRPM   int    `json:"rate_limit_rpm"`
	IsSystem       bool   `json:"is_system"`
	IsBYOKEligible *bool  `json:"is_byok_eligible"`
	MinTier        string `json:"min_tier"`
	IsActive       *bool  `json:"is_active"`
}

// UpdateProviderRequest 更新供应商请求（指针字段表示可选）
type UpdateProviderRequest struct {
	Name        *string `json:"name"`
	BaseURL     *string `json:"base_url"`
	AuthScheme  *string `json:"auth_scheme"`
	PlatformKey *string `json:"platform_key"`

	SupportsStreaming *bool `json:"supports_streaming"`
	SupportsFunctions *bool `json:"supports_functions"`
	SupportsVision    *bool `json:"supports_vision"`

	RateLimitRPM   *int    `json:"rate_limit_rpm"`
	IsSystem       *bool   `json:"is_system"`
	IsBYOKEligible *bool   `json:"is_byok_eligible"`
	MinTier        *string `json:"min_tier"`
}

// ProviderResponse 供应商响应（平台密钥不外泄）
type ProviderResponse struct {
	ID                uint       `json:"id"`
	Name              string     `json:"name"`
	Slug              string     `json:"slug"`
	BaseURL           string     `json:"base_url"`
	AuthScheme        string     `json:"auth_scheme"`
	HasPlatformKey    bool       `json:"has_platform_key"`
	SupportsStreaming bool       `json:"supports_streaming"`
	SupportsFunctions bool       `json:"supports_functions"`
	SupportsVision    bool       `json:"supports_vision"`
	RateLimitRPM      int        `json:"rate_limit_rpm"`
	IsSystem          bool       `json:"is_system"`
	IsBYOKEligible    bool       `json:"is_byok_eligible"`
	MinTier           string     `json:"min_tier"`
	IsActive          bool       `json:"is_active"`
	DisabledByMonitor bool       `json:"disabled_by_monitor"`
	HealthStatus      string     `json:"health_status"`
	LastCheckedAt     *time.Time `json:"last_checked_at,omitempty"`
	LastLatencyMs     int64      `json:"last_latency_ms"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ToProviderResponse 转换为响应对象
func ToProviderResponse(p *models.Provider) *ProviderResponse {
	return &ProviderResponse{
		ID:                p.ID,
		Name:              p.Name,
		Slug:              p.Slug,
		BaseURL:           p.BaseURL,
		AuthScheme:        p.AuthScheme,
		HasPlatformKey:    p.PlatformKey != "",
		SupportsStreaming: p.SupportsStreaming,
		SupportsFunctions: p.SupportsFunctions,
		SupportsVision:    p.SupportsVision,
		RateLimitRPM:      p.RateLimitRPM,
		IsSystem:          p.IsSystem,
		IsBYOKEligible:    p.IsBYOKEligible,
		MinTier:           p.MinTier,
		IsActive:          p.IsActive,
		DisabledByMonitor: p.DisabledByMonitor,
		HealthStatus:      p.HealthStatus,
		LastCheckedAt:     p.LastCheckedAt,
		LastLatencyMs:     p.LastLatencyMs,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// CreateModelRequest 创建模型请求
type CreateModelRequest struct {
	ProviderID  uint   `json:"provider_id" binding:"required"`
	ModelID     string `json:"model_id" binding:"required"`
	DisplayName string `json:"display_name"`

	ContextWindow        int             `json:"context_window"`
	InputCostPerMillion  decimal.Decimal `json:"input_cost_per_million"`
	OutputCostPerMillion decimal.Decimal `json:"output_cost_per_million"`

	SupportsStreaming bool `json:"supports_streaming"`
	SupportsFunctions bool `json:"supports_functions"`
	SupportsVision    bool `json:"supports_vision"`

	PowerTier string `json:"power_tier"`
	MinTier   string `json:"min_tier"`
	IsActive  *bool  `json:"is_active"`
}

// UpdateModelRequest 更新模型请求
type UpdateModelRequest struct {
	DisplayName          *string          `json:"display_name"`
	ContextWindow        *int             `json:"context_window"`
	InputCostPerMillion  *decimal.Decimal `json:"input_cost_per_million"`
	OutputCostPerMillion *decimal.Decimal `json:"output_cost_per_million"`
	SupportsStreaming    *bool            `json:"supports_streaming"`
	SupportsFunctions    *bool            `json:"supports_functions"`
	SupportsVision       *bool            `json:"supports_vision"`
	PowerTier            *string          `json:"power_tier"`
	MinTier              *string          `json:"min_tier"`
	IsActive             *bool            `json:"is_active"`
	Deprecated           *bool            `json:"deprecated"`
	ReplacedByID         *uint            `json:"replaced_by_id"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
