package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// RequestCounter 请求计数器
// 内存计数器 + 滑动时间窗口，用于 /api/stats 的 QPS 展示
type RequestCounter struct {
	totalRequests int64 // 总请求数（原子操作）

	windowMutex    sync.RWMutex
	currentWindow  *timeWindow
	previousWindow *timeWindow
	windowDuration time.Duration
	stopCh         chan struct{}
}

// timeWindow 时间窗口
type timeWindow struct {
	count     int64
	startTime time.Time
}

// NewRequestCounter 创建请求计数器
func NewRequestCounter(windowDuration time.Duration) *RequestCounter {
	if windowDuration == 0 {
		windowDuration = 60 * time.Second
	}

	counter := &RequestCounter{
		windowDuration: windowDuration,
		currentWindow: &timeWindow{
			startTime: time.Now(),
		},
		previousWindow: &timeWindow{
			startTime: time.Now().Add(-windowDuration),
		},
		stopCh: make(chan struct{}),
	}

	// 后台协程定期滚动时间窗口
	go counter.rotateWindows()

	return counter
}

// Increment 增加请求计数
func (rc *RequestCounter) Increment() {
	atomic.AddInt64(&rc.totalRequests, 1)

	rc.windowMutex.Lock()
	rc.currentWindow.count++
	rc.windowMutex.Unlock()
}

// GetTotal 获取总请求数
func (rc *RequestCounter) GetTotal() int64 {
	return atomic.LoadInt64(&rc.totalRequests)
}

// GetQPS 获取当前 QPS，基于滑动窗口的加权平均
func (rc *RequestCounter) GetQPS() float64 {
	rc.windowMutex.RLock()
	defer rc.windowMutex.RUnlock()

	now := time.Now()

	currentElapsed := now.Sub(rc.currentWindow.startTime).Seconds()
	if currentElapsed == 0 {
		currentElapsed = 1 // 避免除零
	}

	currentQPS := float64(rc.currentWindow.count) / currentElapsed

	if currentElapsed < rc.windowDuration.Seconds() {
		prevWeight := (rc.windowDuration.Seconds() - currentElapsed) / rc.windowDuration.Seconds()
		prevQPS := float64(rc.previousWindow.count) / rc.windowDuration.Seconds()

		return currentQPS*(1-prevWeight) + prevQPS*prevWeight
	}

	return currentQPS
}

// Close 停止窗口滚动协程
func (rc *RequestCounter) Close() {
	close(rc.stopCh)
}

// rotateWindows 定期滚动时间窗口
func (rc *RequestCounter) rotateWindows() {
	ticker := time.NewTicker(rc.windowDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rc.windowMutex.Lock()
			rc.previousWindow = rc.currentWindow
			rc.currentWindow = &timeWindow{
				startTime: time.Now(),
			}
			rc.windowMutex.Unlock()
		case <-rc.stopCh:
			return
		}
	}
}

// RequestStats 请求统计信息
type RequestStats struct {
	Total      int64   `json:"total"`
	CurrentQPS float64 `json:"current_qps"`
}

// GetStats 获取统计信息
func (rc *RequestCounter) GetStats() RequestStats {
	return RequestStats{
		Total:      rc.GetTotal(),
		CurrentQPS: rc.GetQPS(),
	}
}
