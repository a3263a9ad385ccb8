package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// 故障类型枚举
type FailureType string

const (
	FailureTimeout    FailureType = "timeout"
	FailureConnection FailureType = "connection"
	FailureServer     FailureType = "server_error"
	FailureRateLimit  FailureType = "rate_limit"
	FailureAuth       FailureType = "auth_rejected"
	FailureMalformed  FailureType = "malformed_response"
)

// ProviderError 供应商调用错误
// Transient 决定编排器是否继续尝试同一决策内的回退候选；
// Usage 非空表示失败前已产生可计费的 Token 消耗
type ProviderError struct {
	Type       FailureType
	StatusCode int
	Message    string
	Usage      *Usage
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider error (%s, HTTP %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Type, e.Message)
}

// Transient 是否为瞬时故障（超时/连接/5xx/限流）
func (e *ProviderError) Transient() bool {
	switch e.Type {
	case FailureTimeout, FailureConnection, FailureServer, FailureRateLimit:
		return true
	default:
		return false
	}
}

// AuthRejected 凭证被供应商拒绝
func (e *ProviderError) AuthRejected() bool {
	return e.Type == FailureAuth
}

// classifyTransportError 将网络层错误归类
func classifyTransportError(err error) *ProviderError {
	if isTimeoutError(err) {
		return &ProviderError{Type: FailureTimeout, Message: err.Error()}
	}
	return &ProviderError{Type: FailureConnection, Message: err.Error()}
}

// classifyStatusCode 将非 2xx 响应归类
func classifyStatusCode(statusCode int, body string) *ProviderError {
	perr := &ProviderError{
		StatusCode: statusCode,
		Message:    truncate(body, 200),
	}

	switch {
	case statusCode == 429:
		perr.Type = FailureRateLimit
	case statusCode == 401 || statusCode == 403:
		perr.Type = FailureAuth
	case statusCode >= 500:
		perr.Type = FailureServer
	default:
		perr.Type = FailureMalformed
	}
	return perr
}

// isTimeoutError 检查是否为超时错误
func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	for _, keyword := range []string{"timeout", "deadline exceeded", "timed out"} {
		if strings.Contains(errMsg, keyword) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
