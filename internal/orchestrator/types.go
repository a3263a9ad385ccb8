package orchestrator

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Luminoxx/Arcturus-API/internal/dispatch"
)

// 请求生命周期阶段
const (
	PhaseRouting     = "routing"
	PhaseAuthorizing = "authorizing"
	PhaseDispatching = "dispatching"
	PhaseRecording   = "recording"
)

var (
	// ErrInsufficientCredit 预授权阶段余额不足
	ErrInsufficientCredit = errors.New("insufficient credit for estimated cost")
	// ErrAllAttemptsFailed 主选与全部回退候选均失败
	ErrAllAttemptsFailed = errors.New("all dispatch attempts failed")
	// ErrLedgerWriteFailed 终态扣费写入账本失败
	ErrLedgerWriteFailed = errors.New("ledger write failed")
)

// ExecuteRequest 一次端到端请求
type ExecuteRequest struct {
	AccountID   string `json:"-"`
	AccountTier string `json:"-"`

	PowerTier string `json:"power_tier"`
	TaskType  string `json:"task_type"`

	RequireStreaming bool `json:"require_streaming"`
	RequireFunctions bool `json:"require_functions"`
	RequireVision    bool `json:"require_vision"`

	Messages  []dispatch.Message `json:"messages"`
	MaxTokens int                `json:"max_tokens"`

	// 预估 Token 数；0 表示由消息内容估算
	EstimatedTokens int `json:"estimated_tokens"`
}

// ExecuteResult 终态结果
type ExecuteResult struct {
	RequestID string `json:"request_id"`
	Content   string `json:"content"`

	ModelName    string `json:"model"`
	ProviderSlug string `json:"provider"`

	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	Cost             decimal.Decimal `json:"cost"`
	CredentialSource string          `json:"credential_source"`

	LatencyMs    int64 `json:"latency_ms"`
	FallbackUsed bool  `json:"fallback_used"`
	Attempts     int   `json:"attempts"`
}

// ExecutionError 携带请求 ID 与终态状态的编排错误
type ExecutionError struct {
	RequestID string
	Phase     string
	Status    string // 对应用量事件状态
	Err       error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
