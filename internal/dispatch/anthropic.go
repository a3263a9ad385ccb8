package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Luminoxx/Arcturus-API/internal/models"
)

// anthropicVersion Messages API 版本头
const anthropicVersion = "2023-06-01"

// AnthropicAdapter Anthropic 风格适配器 (x-api-key 认证)
type AnthropicAdapter struct {
	client *http.Client
}

// NewAnthropicAdapter 创建 Anthropic 风格适配器
func NewAnthropicAdapter(client *http.Client) *AnthropicAdapter {
	return &AnthropicAdapter{client: client}
}

// Scheme 返回认证方式
func (a *AnthropicAdapter) Scheme() string {
	return models.AuthSchemeAPIKey
}

// anthropicRequest 上游请求体
type anthropicRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

// anthropicResponse 上游响应体（只取需要的字段）
type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Dispatch 发起一次调用
func (a *AnthropicAdapter) Dispatch(ctx context.Context, call *Call) (*Result, error) {
	maxTokens := call.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024 // Messages API 要求必填
	}

	payload := anthropicRequest{
		Model:     call.Model,
		Messages:  call.Messages,
		MaxTokens: maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Type: FailureMalformed, Message: err.Error()}
	}

	url := call.BaseURL + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Type: FailureMalformed, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", call.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	startTime := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	latency := time.Since(startTime)
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Type: FailureConnection, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatusCode(resp.StatusCode, string(respBody))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ProviderError{
			Type:       FailureMalformed,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("invalid response body: %v", err),
		}
	}

	result := &Result{
		Usage: Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
		},
		Latency:   latency,
		LatencyMs: latency.Milliseconds(),
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			result.Content = block.Text
			break
		}
	}

	return result, nil
}
