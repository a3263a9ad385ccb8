package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Luminoxx/Arcturus-API/internal/api/middleware"
	"github.com/Luminoxx/Arcturus-API/internal/models"
	"github.com/Luminoxx/Arcturus-API/internal/orchestrator"
	"github.com/Luminoxx/Arcturus-API/internal/routing"
)

// RouteHandler 路由执行 HTTP 处理器
type RouteHandler struct {
	orch   *orchestrator.Orchestrator
	engine *routing.Engine
}

// NewRouteHandler 创建 RouteHandler 实例
func NewRouteHandler(orch *orchestrator.Orchestrator, engine *routing.Engine) *RouteHandler {
	return &RouteHandler{orch: orch, engine: engine}
}

// Execute 端到端执行一次路由请求
// @Summary 路由并调用上游模型
// @Tags route
// @Accept json
// @Produce json
// @Success 200 {object} orchestrator.ExecuteResult
// @Failure 402 {object} gin.H
// @Failure 404 {object} gin.H
// @Failure 502 {object} gin.H
// @Router /v1/route [post]
func (h *RouteHandler) Execute(c *gin.Context) {
	var req orchestrator.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request parameters",
				"details": err.Error(),
			},
		})
		return
	}
	req.AccountID = middleware.AccountID(c)
	req.AccountTier = middleware.AccountTier(c)

	result, err := h.orch.Execute(c.Request.Context(), &req)
	if err != nil {
		h.writeExecutionError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeExecutionError 将编排终态错误映射为 HTTP 响应
func (h *RouteHandler) writeExecutionError(c *gin.Context, err error) {
	var execErr *orchestrator.ExecutionError
	if !errors.As(err, &execErr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Request failed"},
		})
		return
	}

	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	switch execErr.Status {
	case models.UsageStatusNoRoute:
		status = http.StatusNotFound
		code = routing.CodeNoEligibleRoute
	case models.UsageStatusInsufficientBalance:
		status = http.StatusPaymentRequired
		code = "INSUFFICIENT_CREDIT"
	case models.UsageStatusProviderError:
		status = http.StatusBadGateway
		code = "PROVIDER_ERROR"
	case models.UsageStatusCanceled:
		// 客户端已断开，499 语义用 gin 没有常量，沿用 Nginx 约定
		status = 499
		code = "CLIENT_CANCELED"
	}

	c.JSON(status, gin.H{
		"error": gin.H{
			"code":       code,
			"message":    execErr.Error(),
			"request_id": execErr.RequestID,
		},
	})
}

// previewRequest 路由试算请求体
type previewRequest struct {
	PowerTier        string `json:"power_tier"`
	TaskType         string `json:"task_type"`
	RequireStreaming bool   `json:"require_streaming"`
	RequireFunctions bool   `json:"require_functions"`
	RequireVision    bool   `json:"require_vision"`
	EstimatedTokens  int    `json:"estimated_tokens"`
}

// candidateView 候选的对外视图（不含凭证）
type candidateView struct {
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	Weight           int    `json:"weight"`
	Priority         int    `json:"priority"`
	CredentialSource string `json:"credential_source"`
}

// Preview 路由试算：只做决策，不调用上游、不计费
// @Summary 路由决策试算
// @Tags route
// @Router /v1/route/preview [post]
func (h *RouteHandler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request parameters",
				"details": err.Error(),
			},
		})
		return
	}

	decision, err := h.engine.Resolve(c.Request.Context(), &routing.Request{
		AccountID:        middleware.AccountID(c),
		AccountTier:      middleware.AccountTier(c),
		PowerTier:        req.PowerTier,
		TaskType:         req.TaskType,
		RequireStreaming: req.RequireStreaming,
		RequireFunctions: req.RequireFunctions,
		RequireVision:    req.RequireVision,
		EstimatedTokens:  req.EstimatedTokens,
	})
	if err != nil {
		var routeErr *routing.RouteError
		if errors.As(err, &routeErr) && routeErr.Code == routing.CodeNoEligibleRoute {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": routeErr.Code, "message": routeErr.Message},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Routing failed"},
		})
		return
	}

	views := make([]candidateView, 0, decision.CandidateCount)
	for _, candidate := range decision.Candidates() {
		views = append(views, candidateView{
			Provider:         candidate.Provider.Slug,
			Model:            candidate.Model.ModelID,
			Weight:           candidate.Weight,
			Priority:         candidate.Priority,
			CredentialSource: candidate.CredentialSource,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"primary":   views[0],
		"fallbacks": views[1:],
	})
}
