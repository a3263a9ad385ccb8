package routing

import (
	"github.com/Luminoxx/Arcturus-API/internal/models"
)

// Request 路由请求的决策输入
type Request struct {
	AccountID   string `json:"account_id"`
	AccountTier string `json:"account_tier"`
	PowerTier   string `json:"power_tier"`
	TaskType    string `json:"task_type"`

	RequireStreaming bool `json:"require_streaming"`
	RequireFunctions bool `json:"require_functions"`
	RequireVision    bool `json:"require_vision"`

	// 预估 Token 数；0 或负数表示未知，跳过 Token 区间过滤
	EstimatedTokens int `json:"estimated_tokens"`
}

// Candidate 一个可调度的 (模型, 供应商, 凭证来源) 候选
type Candidate struct {
	RuleID   uint
	Model    *models.Model
	Provider *models.Provider

	Weight   int
	Priority int

	CredentialSource string // platform / byok
	APIKey           string // 解密后的凭证，仅限内部调用路径

	AvgLatencyMs float64
	HasLatency   bool
}

// Decision 一次路由决策
// Primary 为选中的候选，Fallbacks 按回退顺序排列；
// 编排器失败重试只在本决策内推进，不重新询问已尝试过的供应商
type Decision struct {
	Primary        *Candidate
	Fallbacks      []*Candidate
	CandidateCount int
}

// Candidates 按尝试顺序返回全部候选
func (d *Decision) Candidates() []*Candidate {
	result := make([]*Candidate, 0, 1+len(d.Fallbacks))
	result = append(result, d.Primary)
	result = append(result, d.Fallbacks...)
	return result
}

// ==================== 路由错误类型 ====================

// RouteError 路由错误
type RouteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RouteError) Error() string {
	return e.Message
}

// 路由错误码
const (
	CodeNoEligibleRoute = "NO_ELIGIBLE_ROUTE"
	CodeInternalError   = "ROUTING_ERROR"
)

// ErrNoEligibleRoute 无可用路由
// 过滤后候选集为空是预期内的正常结果，必须与供应商错误严格区分
var ErrNoEligibleRoute = &RouteError{
	Code:    CodeNoEligibleRoute,
	Message: "no eligible route for the requested criteria",
}

// NewInternalRouteError 创建路由内部错误
func NewInternalRouteError(message string) *RouteError {
	return &RouteError{
		Code:    CodeInternalError,
		Message: message,
	}
}
