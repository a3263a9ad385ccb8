package dispatch

import (
	"context"
	"net/http"
	"time"

	"github.com/Luminoxx/Arcturus-API/internal/models"
)

// Message 一条对话消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Call 一次供应商调用
// 凭证与端点由路由决策注入，适配器不关心凭证来源
type Call struct {
	BaseURL   string
	APIKey    string
	Model     string
	Messages  []Message
	MaxTokens int
}

// Usage 归一化后的 Token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Result 归一化后的调用结果
type Result struct {
	Content   string        `json:"content"`
	Usage     Usage         `json:"usage"`
	Latency   time.Duration `json:"-"`
	LatencyMs int64         `json:"latency_ms"`
}

// Adapter 供应商适配器接口
// 封闭的适配器集合屏蔽各家上游的差异，对外只暴露
// 归一化的请求与用量，选择由路由引擎完成
type Adapter interface {
	// Dispatch 发起一次调用，超时由 ctx 控制
	Dispatch(ctx context.Context, call *Call) (*Result, error)

	// Scheme 适配器对应的认证方式
	Scheme() string
}

// Dispatcher 调度入口（编排器依赖该接口，便于测试替换）
type Dispatcher interface {
	Dispatch(ctx context.Context, provider *models.Provider, call *Call) (*Result, error)
}

// Manager 按供应商认证方式选择适配器
type Manager struct {
	adapters map[string]Adapter
}

// NewManager 创建适配器管理器，注册全部内建适配器
func NewManager(client *http.Client) *Manager {
	if client == nil {
		client = &http.Client{}
	}

	manager := &Manager{
		adapters: make(map[string]Adapter),
	}
	manager.register(NewOpenAIAdapter(client))
	manager.register(NewAnthropicAdapter(client))
	return manager
}

func (m *Manager) register(adapter Adapter) {
	m.adapters[adapter.Scheme()] = adapter
}

// Dispatch 将调用路由到供应商对应的适配器
func (m *Manager) Dispatch(ctx context.Context, provider *models.Provider, call *Call) (*Result, error) {
	adapter, ok := m.adapters[provider.AuthScheme]
	if !ok {
		// 未知认证方式按 bearer 处理
		adapter = m.adapters[models.AuthSchemeBearer]
	}
	return adapter.Dispatch(ctx, call)
}
