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

// OpenAIAdapter OpenAI 兼容适配器 (bearer 认证)
// 覆盖绝大多数兼容 /v1/chat/completions 协议的供应商
type OpenAIAdapter struct {
	client *http.Client
}

// NewOpenAIAdapter 创建 OpenAI 兼容适配器
func NewOpenAIAdapter(client *http.Client) *OpenAIAdapter {
	return &OpenAIAdapter{client: client}
}

// Scheme 返回认证方式
func (a *OpenAIAdapter) Scheme() string {
	return models.AuthSchemeBearer
}

// openaiRequest 上游请求体
type openaiRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// openaiResponse 上游响应体（只取需要的字段）
type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Dispatch 发起一次调用
func (a *OpenAIAdapter) Dispatch(ctx context.Context, call *Call) (*Result, error) {
	payload := openaiRequest{
		Model:     call.Model,
		Messages:  call.Messages,
		MaxTokens: call.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Type: FailureMalformed, Message: err.Error()}
	}

	url := call.BaseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Type: FailureMalformed, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+call.APIKey)

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

	var parsed openaiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ProviderError{
			Type:       FailureMalformed,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("invalid response body: %v", err),
		}
	}

	result := &Result{
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
		},
		Latency:   latency,
		LatencyMs: latency.Milliseconds(),
	}
	if len(parsed.Choices) > 0 {
		result.Content = parsed.Choices[0].Message.Content
	}

	return result, nil
}
