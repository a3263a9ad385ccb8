package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Luminoxx/Arcturus-API/internal/models"
)

// Checker 供应商健康探测器
type Checker struct {
	client      *http.Client
	timeout     time.Duration
	slowLatency time.Duration
}

// NewChecker 创建健康探测器
func NewChecker(timeout, slowLatency time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if slowLatency <= 0 {
		slowLatency = 3 * time.Second
	}

	return &Checker{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout:     timeout,
		slowLatency: slowLatency,
	}
}

// ProbeResult 健康探测结果
type ProbeResult struct {
	Status     string    `json:"status"` // healthy / degraded / down
	LatencyMs  int64     `json:"latency_ms"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Probe 对供应商执行一次轻量能力探测
// 调用 /v1/models 端点验证可达性；2xx 且延迟在预算内为 healthy，
// 限流或响应缓慢为 degraded，超时/连接错误/5xx 为 down
func (c *Checker) Probe(ctx context.Context, provider *models.Provider, apiKey string) *ProbeResult {
	startTime := time.Now()
	result := &ProbeResult{
		CheckedAt: startTime,
	}

	checkURL := provider.BaseURL + "/v1/models"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		result.Status = models.HealthStatusDown
		result.Error = fmt.Sprintf("创建请求失败: %v", err)
		return result
	}

	if apiKey != "" {
		switch provider.AuthScheme {
		case models.AuthSchemeAPIKey:
			req.Header.Set("x-api-key", apiKey)
		default:
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}
	}
	req.Header.Set("User-Agent", "Arcturus-API/1.0")

	resp, err := c.client.Do(req)
	result.LatencyMs = time.Since(startTime).Milliseconds()
	if err != nil {
		// 超时与连接错误一律视为 down
		result.Status = models.HealthStatusDown
		result.Error = fmt.Sprintf("请求失败: %v", err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if time.Duration(result.LatencyMs)*time.Millisecond > c.slowLatency {
			result.Status = models.HealthStatusDegraded
			result.Error = fmt.Sprintf("响应缓慢: %dms", result.LatencyMs)
		} else {
			result.Status = models.HealthStatusHealthy
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		result.Status = models.HealthStatusDegraded
		result.Error = "HTTP 429"
	case resp.StatusCode >= 500:
		result.Status = models.HealthStatusDown
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	default:
		// 其他 4xx：端点可达但拒绝探测请求
		result.Status = models.HealthStatusDegraded
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	return result
}
