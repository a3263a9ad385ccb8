package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Luminoxx/Arcturus-API/internal/dispatch"
	"github.com/Luminoxx/Arcturus-API/internal/events"
	"github.com/Luminoxx/Arcturus-API/internal/ledger"
	"github.com/Luminoxx/Arcturus-API/internal/models"
	"github.com/Luminoxx/Arcturus-API/internal/routing"
	"github.com/Luminoxx/Arcturus-API/internal/stats"
	"github.com/Luminoxx/Arcturus-API/internal/usage"
	"github.com/Luminoxx/Arcturus-API/internal/vault"
)

// 预授权时默认的输出 Token 预留
const defaultOutputAllowance = 1024

// Orchestrator 请求编排器
// 串起路由决策、预授权、供应商调用、计费与用量记录；
// 每个请求无论成败恰好留下一条用量事件
type Orchestrator struct {
	engine     *routing.Engine
	dispatcher dispatch.Dispatcher
	ledger     *ledger.Service
	usage      *usage.Service
	vault      *vault.Service
	latency    *stats.LatencyTracker
	events     *events.Service

	dispatchTimeout time.Duration
	maxAttempts     int
}

// NewOrchestrator 创建请求编排器
func NewOrchestrator(
	engine *routing.Engine,
	dispatcher dispatch.Dispatcher,
	ledgerSvc *ledger.Service,
	usageSvc *usage.Service,
	vaultSvc *vault.Service,
	latency *stats.LatencyTracker,
	eventSvc *events.Service,
	dispatchTimeout time.Duration,
	maxAttempts int,
) *Orchestrator {
	if dispatchTimeout <= 0 {
		dispatchTimeout = 60 * time.Second
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &Orchestrator{
		engine:          engine,
		dispatcher:      dispatcher,
		ledger:          ledgerSvc,
		usage:           usageSvc,
		vault:           vaultSvc,
		latency:         latency,
		events:          eventSvc,
		dispatchTimeout: dispatchTimeout,
		maxAttempts:     maxAttempts,
	}
}

// Execute 执行一次端到端请求
func (o *Orchestrator) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResult, error) {
	requestID := uuid.New().String()

	// ==================== 路由 ====================
	promptEstimate := req.EstimatedTokens
	if promptEstimate <= 0 {
		promptEstimate = estimateTokens(req.Messages)
	}

	decision, err := o.engine.Resolve(ctx, &routing.Request{
		AccountID:        req.AccountID,
		AccountTier:      req.AccountTier,
		PowerTier:        req.PowerTier,
		TaskType:         req.TaskType,
		RequireStreaming: req.RequireStreaming,
		RequireFunctions: req.RequireFunctions,
		RequireVision:    req.RequireVision,
		EstimatedTokens:  promptEstimate,
	})
	if err != nil {
		o.recordFailure(requestID, req, nil, models.UsageStatusNoRoute, err, decimal.Zero)
		return nil, &ExecutionError{
			RequestID: requestID,
			Phase:     PhaseRouting,
			Status:    models.UsageStatusNoRoute,
			Err:       err,
		}
	}

	// ==================== 预授权 ====================
	// BYOK 走用户自己的凭证，不消耗平台额度，跳过余额检查
	primary := decision.Primary
	if primary.CredentialSource == models.CredentialSourcePlatform {
		estimated := o.estimateCost(primary.Model, promptEstimate, req.MaxTokens)
		if err := o.authorize(req.AccountID, estimated); err != nil {
			o.recordFailure(requestID, req, primary, models.UsageStatusInsufficientBalance, err, decimal.Zero)
			return nil, &ExecutionError{
				RequestID: requestID,
				Phase:     PhaseAuthorizing,
				Status:    models.UsageStatusInsufficientBalance,
				Err:       err,
			}
		}
	}

	// ==================== 调用（含回退） ====================
	// 同一供应商可能命中多条规则，回退时去重：已失败的供应商不再询问
	candidates := make([]*routing.Candidate, 0, o.maxAttempts)
	seen := make(map[uint]bool)
	for _, candidate := range decision.Candidates() {
		if seen[candidate.Provider.ID] {
			continue
		}
		seen[candidate.Provider.ID] = true
		candidates = append(candidates, candidate)
		if len(candidates) == o.maxAttempts {
			break
		}
	}

	var lastErr *dispatch.ProviderError
	var lastCandidate *routing.Candidate
	partialCost := decimal.Zero
	for attempt, candidate := range candidates {
		if ctx.Err() != nil {
			o.recordFailure(requestID, req, candidate, models.UsageStatusCanceled, ctx.Err(), partialCost)
			return nil, &ExecutionError{
				RequestID: requestID,
				Phase:     PhaseDispatching,
				Status:    models.UsageStatusCanceled,
				Err:       ctx.Err(),
			}
		}

		result, provErr := o.dispatchOnce(ctx, req, candidate)
		if provErr == nil {
			return o.settle(requestID, req, candidate, result, attempt)
		}

		lastErr = provErr
		lastCandidate = candidate
		partialCost = partialCost.Add(o.handleAttemptFailure(requestID, req, candidate, provErr, attempt, len(candidates)))

		if !o.shouldContinue(provErr, candidate) {
			break
		}
	}

	// 取消优先于供应商错误上报
	if ctx.Err() != nil {
		o.recordFailure(requestID, req, lastCandidate, models.UsageStatusCanceled, ctx.Err(), partialCost)
		return nil, &ExecutionError{
			RequestID: requestID,
			Phase:     PhaseDispatching,
			Status:    models.UsageStatusCanceled,
			Err:       ctx.Err(),
		}
	}

	o.recordProviderFailure(requestID, req, lastCandidate, lastErr, partialCost)
	return nil, &ExecutionError{
		RequestID: requestID,
		Phase:     PhaseDispatching,
		Status:    models.UsageStatusProviderError,
		Err:       fmt.Errorf("%w: %v", ErrAllAttemptsFailed, lastErr),
	}
}

// dispatchOnce 对单个候选执行一次调用
func (o *Orchestrator) dispatchOnce(ctx context.Context, req *ExecuteRequest, candidate *routing.Candidate) (*dispatch.Result, *dispatch.ProviderError) {
	callCtx, cancel := context.WithTimeout(ctx, o.dispatchTimeout)
	defer cancel()

	call := &dispatch.Call{
		BaseURL:   candidate.Provider.BaseURL,
		APIKey:    candidate.APIKey,
		Model:     candidate.Model.ModelID,
		Messages:  req.Messages,
		MaxTokens: req.MaxTokens,
	}

	result, err := o.dispatcher.Dispatch(callCtx, candidate.Provider, call)
	if err != nil {
		var provErr *dispatch.ProviderError
		if errors.As(err, &provErr) {
			return nil, provErr
		}
		return nil, &dispatch.ProviderError{
			Type:    dispatch.FailureConnection,
			Message: err.Error(),
		}
	}

	o.latency.Observe(candidate.Provider.ID, result.Latency)
	return result, nil
}

// settle 成功路径的计费与记录
func (o *Orchestrator) settle(requestID string, req *ExecuteRequest, candidate *routing.Candidate, result *dispatch.Result, attempt int) (*ExecuteResult, error) {
	cost := decimal.Zero
	if candidate.CredentialSource == models.CredentialSourcePlatform {
		cost = candidate.Model.CostFor(result.Usage.PromptTokens, result.Usage.CompletionTokens)
		// 扣费写入失败是致命错误：不能在账本没有记账的情况下把响应交付给调用方
		if err := o.deduct(requestID, req.AccountID, cost, candidate.Model.ModelID); err != nil {
			o.recordFailure(requestID, req, candidate, models.UsageStatusInternalError, err, decimal.Zero)
			return nil, &ExecutionError{
				RequestID: requestID,
				Phase:     PhaseRecording,
				Status:    models.UsageStatusInternalError,
				Err:       fmt.Errorf("%w: %v", ErrLedgerWriteFailed, err),
			}
		}
	} else {
		// 自带凭证：零成本计费，刷新使用痕迹
		if err := o.vault.RecordUse(req.AccountID, candidate.Provider.ID); err != nil {
			o.logWarning(models.EventTypeMeteringAnomaly, "记录 BYOK 使用失败", map[string]interface{}{
				"request_id": requestID,
				"error":      err.Error(),
			})
		}
	}

	event := &models.UsageEvent{
		RequestID:        requestID,
		AccountID:        req.AccountID,
		ProviderID:       candidate.Provider.ID,
		ModelID:          candidate.Model.ID,
		ModelName:        candidate.Model.ModelID,
		CredentialSource: candidate.CredentialSource,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		Cost:             cost,
		LatencyMs:        result.LatencyMs,
		Status:           models.UsageStatusSuccess,
		FallbackUsed:     attempt > 0,
	}
	if err := o.usage.Record(event); err != nil {
		o.logWarning(models.EventTypeMeteringAnomaly, "写入用量事件失败", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}

	return &ExecuteResult{
		RequestID:        requestID,
		Content:          result.Content,
		ModelName:        candidate.Model.ModelID,
		ProviderSlug:     candidate.Provider.Slug,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		Cost:             cost,
		CredentialSource: candidate.CredentialSource,
		LatencyMs:        result.LatencyMs,
		FallbackUsed:     attempt > 0,
		Attempts:         attempt + 1,
	}, nil
}

// authorize 预授权：校验余额覆盖预估成本
// 只读校验，不冻结额度；实际扣费按真实用量在终态执行
func (o *Orchestrator) authorize(accountID string, estimated decimal.Decimal) error {
	balance, err := o.ledger.GetBalance(accountID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return ErrInsufficientCredit
		}
		return err
	}
	if balance.Remaining.LessThan(estimated) {
		return ErrInsufficientCredit
	}
	return nil
}

// estimateCost 按预估输入与输出预留计算预授权成本
func (o *Orchestrator) estimateCost(model *models.Model, promptEstimate, maxTokens int) decimal.Decimal {
	allowance := maxTokens
	if allowance <= 0 {
		allowance = defaultOutputAllowance
	}
	return model.CostFor(promptEstimate, allowance)
}

// deduct 按实际用量扣费
// 守护条件保证余额不为负；失败时记录告警事件并把错误交还调用方裁决
func (o *Orchestrator) deduct(requestID, accountID string, cost decimal.Decimal, modelName string) error {
	if !cost.IsPositive() {
		return nil
	}
	_, err := o.ledger.Deduct(accountID, cost, "usage:"+modelName, requestID)
	if err != nil {
		o.logWarning(models.EventTypeMeteringAnomaly, "终态扣费失败", map[string]interface{}{
			"request_id": requestID,
			"account_id": accountID,
			"cost":       cost.String(),
			"error":      err.Error(),
		})
		return err
	}
	return nil
}

// handleAttemptFailure 单次尝试失败的副作用，返回本次实际扣除的部分计费
func (o *Orchestrator) handleAttemptFailure(requestID string, req *ExecuteRequest, candidate *routing.Candidate, provErr *dispatch.ProviderError, attempt, total int) decimal.Decimal {
	billed := decimal.Zero
	// 失败前已产生的 Token 消耗照常计费
	if provErr.Usage != nil && candidate.CredentialSource == models.CredentialSourcePlatform {
		partial := candidate.Model.CostFor(provErr.Usage.PromptTokens, provErr.Usage.CompletionTokens)
		if err := o.deduct(requestID, req.AccountID, partial, candidate.Model.ModelID); err == nil {
			billed = partial
		}
	}

	// 用户凭证被供应商拒绝：标记失效，后续路由不再选用
	if provErr.AuthRejected() && candidate.CredentialSource == models.CredentialSourceBYOK {
		if err := o.vault.MarkInvalid(req.AccountID, candidate.Provider.ID); err == nil {
			o.logWarning(models.EventTypeCredentialInvalidated, "BYOK 凭证被拒绝，已标记失效", map[string]interface{}{
				"request_id":  requestID,
				"provider_id": candidate.Provider.ID,
			})
		}
	}

	if attempt < total-1 && o.shouldContinue(provErr, candidate) {
		o.logWarning(models.EventTypeFailover, fmt.Sprintf("供应商 %s 调用失败，切换回退候选", candidate.Provider.Slug), map[string]interface{}{
			"request_id": requestID,
			"provider":   candidate.Provider.Slug,
			"failure":    string(provErr.Type),
			"attempt":    attempt + 1,
		})
	}
	return billed
}

// shouldContinue 判定是否推进到下一个候选
// 瞬时故障继续回退；BYOK 凭证被拒后仍可尝试其他候选（可能落到平台凭证）
func (o *Orchestrator) shouldContinue(provErr *dispatch.ProviderError, candidate *routing.Candidate) bool {
	if provErr.Transient() {
		return true
	}
	if provErr.AuthRejected() && candidate.CredentialSource == models.CredentialSourceBYOK {
		return true
	}
	return false
}

// recordProviderFailure 全部候选失败的终态记录
// cost 为各次尝试累计扣除的部分计费，须与账本流水对得上
func (o *Orchestrator) recordProviderFailure(requestID string, req *ExecuteRequest, candidate *routing.Candidate, provErr *dispatch.ProviderError, cost decimal.Decimal) {
	event := &models.UsageEvent{
		RequestID:    requestID,
		AccountID:    req.AccountID,
		Cost:         cost,
		Status:       models.UsageStatusProviderError,
		ErrorMessage: provErr.Error(),
	}
	if candidate != nil {
		event.ProviderID = candidate.Provider.ID
		event.ModelID = candidate.Model.ID
		event.ModelName = candidate.Model.ModelID
		event.CredentialSource = candidate.CredentialSource
	}
	if provErr.Usage != nil {
		event.PromptTokens = provErr.Usage.PromptTokens
		event.CompletionTokens = provErr.Usage.CompletionTokens
	}
	if err := o.usage.Record(event); err != nil {
		o.logWarning(models.EventTypeMeteringAnomaly, "写入用量事件失败", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}

// recordFailure 非供应商原因的终态记录
func (o *Orchestrator) recordFailure(requestID string, req *ExecuteRequest, candidate *routing.Candidate, status string, cause error, cost decimal.Decimal) {
	event := &models.UsageEvent{
		RequestID:    requestID,
		AccountID:    req.AccountID,
		Cost:         cost,
		Status:       status,
		ErrorMessage: cause.Error(),
	}
	if candidate != nil {
		event.ProviderID = candidate.Provider.ID
		event.ModelID = candidate.Model.ID
		event.ModelName = candidate.Model.ModelID
		event.CredentialSource = candidate.CredentialSource
	}
	if err := o.usage.Record(event); err != nil {
		o.logWarning(models.EventTypeMeteringAnomaly, "写入用量事件失败", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}

func (o *Orchestrator) logWarning(eventType, message string, metadata map[string]interface{}) {
	if o.events == nil {
		return
	}
	_ = o.events.LogWarning(eventType, message, metadata)
}

// estimateTokens 从消息内容粗估 Token 数
// 以 4 字符 ≈ 1 Token 折算，足够预授权用途
func estimateTokens(messages []dispatch.Message) int {
	chars := 0
	for _, message := range messages {
		chars += len(message.Content)
	}
	tokens := chars / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
