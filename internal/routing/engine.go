package routing

import (
	"context"
	"fmt"
	"sort"

	"github.com/Luminoxx/Arcturus-API/internal/models"
	"github.com/Luminoxx/Arcturus-API/internal/registry"
	"github.com/Luminoxx/Arcturus-API/internal/stats"
	"github.com/Luminoxx/Arcturus-API/internal/vault"
)

// Engine 路由引擎
// 对每个请求产出一次完整决策：规则匹配 → 能力/Token/档位过滤 →
// 健康过滤 → 凭证来源解析 → 加权选择 + 回退排序。
// 引擎只读 Registry/Health/Vault，不写任何状态
type Engine struct {
	rules    *Repository
	registry *registry.Service
	vault    *vault.Service
	latency  *stats.LatencyTracker
	selector *Selector
}

// NewEngine 创建路由引擎
func NewEngine(rules *Repository, registrySvc *registry.Service, vaultSvc *vault.Service, latency *stats.LatencyTracker, selector *Selector) *Engine {
	if selector == nil {
		selector = NewSelector()
	}

	return &Engine{
		rules:    rules,
		registry: registrySvc,
		vault:    vaultSvc,
		latency:  latency,
		selector: selector,
	}
}

// Resolve 执行一次路由决策
// 过滤后候选集为空时返回 ErrNoEligibleRoute（预期结果，非异常）
func (e *Engine) Resolve(ctx context.Context, req *Request) (*Decision, error) {
	// 1. 匹配路由规则
	rules, err := e.rules.FindMatching(req.PowerTier, req.AccountTier, req.TaskType)
	if err != nil {
		return nil, NewInternalRouteError(fmt.Sprintf("failed to load routing rules: %v", err))
	}

	// 2-4. 逐规则过滤并解析凭证来源
	var candidates []*Candidate
	for _, rule := range rules {
		candidate, ok := e.buildCandidate(req, rule)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate)
	}

	if len(candidates) == 0 {
		return nil, ErrNoEligibleRoute
	}

	// 5. 选择主候选并排出回退顺序
	primary := e.selector.Pick(candidates, selectionPolicyFor(rules))

	fallbacks := make([]*Candidate, 0, len(candidates)-1)
	for _, candidate := range candidates {
		if candidate != primary {
			fallbacks = append(fallbacks, candidate)
		}
	}
	sortByFallbackOrder(fallbacks)

	return &Decision{
		Primary:        primary,
		Fallbacks:      fallbacks,
		CandidateCount: len(candidates),
	}, nil
}

// buildCandidate 对单条规则执行全部过滤，通过则产出候选
func (e *Engine) buildCandidate(req *Request, rule *models.RoutingRule) (*Candidate, bool) {
	model := &rule.Model
	if model.ID == 0 || !model.IsActive || model.Deprecated {
		return nil, false
	}

	// 模型/供应商档位门槛
	if !models.TierAtLeast(req.AccountTier, model.MinTier) {
		return nil, false
	}

	// 能力过滤
	if req.RequireStreaming && !model.SupportsStreaming {
		return nil, false
	}
	if req.RequireFunctions && !model.SupportsFunctions {
		return nil, false
	}
	if req.RequireVision && !model.SupportsVision {
		return nil, false
	}

	// Token 区间过滤；预估值 0 或负数视为未知，直接放行
	if req.EstimatedTokens > 0 {
		if rule.MinTokens > 0 && req.EstimatedTokens < rule.MinTokens {
			return nil, false
		}
		if rule.MaxTokens > 0 && req.EstimatedTokens > rule.MaxTokens {
			return nil, false
		}
		if model.ContextWindow > 0 && req.EstimatedTokens > model.ContextWindow {
			return nil, false
		}
	}

	// 健康过滤：供应商快照来自缓存，down 或禁用的直接出局
	provider, ok := e.registry.Cache().Get(model.ProviderID)
	if !ok {
		return nil, false
	}
	if !provider.IsActive || provider.HealthStatus == models.HealthStatusDown {
		return nil, false
	}
	if !models.TierAtLeast(req.AccountTier, provider.MinTier) {
		return nil, false
	}

	// 凭证来源：优先用户自带密钥（平台零成本），
	// 其次平台密钥；两者都不可用则淘汰该候选
	source, apiKey, ok := e.resolveCredential(req.AccountID, provider)
	if !ok {
		return nil, false
	}

	candidate := &Candidate{
		RuleID:           rule.ID,
		Model:            model,
		Provider:         provider,
		Weight:           rule.Weight,
		Priority:         rule.Priority,
		CredentialSource: source,
		APIKey:           apiKey,
	}

	if avg, exists := e.latency.Average(provider.ID); exists {
		candidate.AvgLatencyMs = avg
		candidate.HasLatency = true
	}

	return candidate, true
}

// resolveCredential 解析候选的凭证来源
func (e *Engine) resolveCredential(accountID string, provider *models.Provider) (string, string, bool) {
	if provider.IsBYOKEligible && e.vault.HasValidKey(accountID, provider.ID) {
		key, err := e.vault.GetDecrypted(accountID, provider.ID)
		if err == nil && key != "" {
			return models.CredentialSourceBYOK, key, true
		}
	}

	if provider.PlatformKey != "" {
		key, err := e.registry.GetPlatformKey(provider)
		if err == nil && key != "" {
			return models.CredentialSourcePlatform, key, true
		}
	}

	return "", "", false
}

// selectionPolicyFor 取规则集的选择策略
// 规则已按回退优先级排序，以最高优先级规则的策略为准
func selectionPolicyFor(rules []*models.RoutingRule) string {
	for _, rule := range rules {
		if rule.SelectionPolicy != "" {
			return rule.SelectionPolicy
		}
	}
	return models.SelectionPolicyWeightedRandom
}

// sortByFallbackOrder 回退候选排序：优先级升序，同优先级权重降序
func sortByFallbackOrder(candidates []*Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].Weight > candidates[j].Weight
	})
}
