package health

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Luminoxx/Arcturus-API/internal/events"
	"github.com/Luminoxx/Arcturus-API/internal/models"
	"github.com/Luminoxx/Arcturus-API/internal/registry"
)

// Monitor 健康监控器
// 独立于请求流量的周期性巡检：逐供应商并发探测，写回健康字段，
// 并在状态变迁时自动禁用/恢复非系统供应商。
// 健康字段与 disabled_by_monitor 标记仅由本监控写入
type Monitor struct {
	registry *registry.Service
	repo     *registry.Repository
	checker  *Checker
	events   *events.Service

	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMonitor 创建健康监控器
func NewMonitor(registrySvc *registry.Service, repo *registry.Repository, checker *Checker, eventSvc *events.Service, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Monitor{
		registry: registrySvc,
		repo:     repo,
		checker:  checker,
		events:   eventSvc,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start 启动周期巡检（阻塞，应在独立 goroutine 中运行）
func (m *Monitor) Start(ctx context.Context) {
	log.Printf("🩺 健康监控启动，周期 %s", m.interval)

	// 启动后先做一轮巡检，避免等待一个完整周期
	m.CheckAll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CheckAll(ctx)
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop 停止巡检
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

// CheckAll 对全部供应商执行一轮并发巡检
// 每个供应商独立探测，单个超时不影响其他供应商和整轮巡检
func (m *Monitor) CheckAll(ctx context.Context) {
	providers, _, err := m.repo.FindAllProviders(1, 1000)
	if err != nil {
		log.Printf("健康巡检失败: 无法加载供应商列表: %v", err)
		return
	}

	var wg sync.WaitGroup
	for _, provider := range providers {
		wg.Add(1)
		go func(p *models.Provider) {
			defer wg.Done()
			m.checkOne(ctx, p)
		}(provider)
	}
	wg.Wait()
}

// CheckProvider 对单个供应商触发一次即时巡检（管理接口调用）
func (m *Monitor) CheckProvider(ctx context.Context, id uint) (*ProbeResult, error) {
	provider, err := m.repo.FindProviderByID(id)
	if err != nil {
		return nil, err
	}
	return m.checkOne(ctx, provider), nil
}

// checkOne 探测单个供应商并处理状态变迁
func (m *Monitor) checkOne(ctx context.Context, provider *models.Provider) *ProbeResult {
	apiKey, err := m.registry.GetPlatformKey(provider)
	if err != nil {
		log.Printf("供应商 %s 平台密钥解密失败: %v", provider.Slug, err)
		apiKey = ""
	}

	result := m.checker.Probe(ctx, provider, apiKey)

	before := provider.HealthStatus
	after := result.Status

	if err := m.repo.UpdateProviderHealth(provider.ID, after, result.LatencyMs, result.CheckedAt); err != nil {
		log.Printf("供应商 %s 健康状态写入失败: %v", provider.Slug, err)
		return result
	}

	if before != after {
		m.handleTransition(provider, before, after)
	}

	m.registry.Cache().Invalidate()
	return result
}

// handleTransition 处理健康状态变迁
// down ⇒ 自动禁用（is_system 供应商除外）；
// healthy ⇒ 仅恢复监控自己禁用过的供应商，不触碰管理员的手动禁用
func (m *Monitor) handleTransition(provider *models.Provider, before, after string) {
	metadata := map[string]interface{}{
		"provider_id": provider.ID,
		"slug":        provider.Slug,
		"before":      before,
		"after":       after,
	}

	if err := m.events.LogInfo(models.EventTypeHealthTransition,
		fmt.Sprintf("供应商 %s 健康状态: %s -> %s", provider.Slug, before, after), metadata); err != nil {
		log.Printf("记录健康变迁事件失败: %v", err)
	}

	switch after {
	case models.HealthStatusDown:
		if provider.IsSystem {
			log.Printf("⚠️  系统供应商 %s 探测为 down，跳过自动禁用", provider.Slug)
			return
		}
		if !provider.IsActive {
			return
		}
		if err := m.repo.SetProviderActive(provider.ID, false, true); err != nil {
			log.Printf("自动禁用供应商 %s 失败: %v", provider.Slug, err)
			return
		}
		_ = m.events.LogWarning(models.EventTypeProviderDisabled,
			fmt.Sprintf("供应商 %s 因探测 down 被自动禁用", provider.Slug), metadata)

	case models.HealthStatusHealthy:
		// 只有监控自己禁用的供应商才自动恢复
		if provider.IsActive || !provider.DisabledByMonitor {
			return
		}
		if err := m.repo.SetProviderActive(provider.ID, true, true); err != nil {
			log.Printf("自动恢复供应商 %s 失败: %v", provider.Slug, err)
			return
		}
		_ = m.events.LogInfo(models.EventTypeProviderRecovered,
			fmt.Sprintf("供应商 %s 探测恢复 healthy，自动重新启用", provider.Slug), metadata)
	}
}
