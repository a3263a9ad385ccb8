package stats

import (
	"sync"
	"time"
)

// LatencyTracker 供应商延迟跟踪器
// 维护每个供应商的指数移动平均延迟，供路由在权重相同时做
// 低延迟优先的决胜
type LatencyTracker struct {
	mu       sync.RWMutex
	averages map[uint]float64 // providerID -> 平均延迟(ms)
	counts   map[uint]int64
}

// emaAlpha 新样本权重
const emaAlpha = 0.2

// NewLatencyTracker 创建延迟跟踪器
func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{
		averages: make(map[uint]float64),
		counts:   make(map[uint]int64),
	}
}

// Observe 记录一次调用延迟
func (t *LatencyTracker) Observe(providerID uint, latency time.Duration) {
	ms := float64(latency.Milliseconds())

	t.mu.Lock()
	defer t.mu.Unlock()

	current, exists := t.averages[providerID]
	if !exists {
		t.averages[providerID] = ms
	} else {
		// 指数移动平均
		t.averages[providerID] = emaAlpha*ms + (1-emaAlpha)*current
	}
	t.counts[providerID]++
}

// Average 获取供应商平均延迟(ms)；无样本时返回 0 和 false
func (t *LatencyTracker) Average(providerID uint) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	avg, exists := t.averages[providerID]
	return avg, exists
}

// Snapshot 获取全部供应商的平均延迟副本
func (t *LatencyTracker) Snapshot() map[uint]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[uint]float64, len(t.averages))
	for providerID, avg := range t.averages {
		result[providerID] = avg
	}
	return result
}

// Reset 清空指定供应商的统计
func (t *LatencyTracker) Reset(providerID uint) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.averages, providerID)
	delete(t.counts, providerID)
}
