package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Luminoxx/Arcturus-API/internal/models"
	"github.com/Luminoxx/Arcturus-API/internal/routing"
)

// RuleHandler 路由规则管理 HTTP 处理器
type RuleHandler struct {
	repo *routing.Repository
}

// NewRuleHandler 创建 RuleHandler 实例
func NewRuleHandler(repo *routing.Repository) *RuleHandler {
	return &RuleHandler{repo: repo}
}

// createRuleRequest 创建规则请求体
type createRuleRequest struct {
	PowerTier   string `json:"power_tier" binding:"required"`
	AccountTier string `json:"account_tier" binding:"required"`
	TaskType    string `json:"task_type" binding:"required"`
	ModelID     uint   `json:"model_id" binding:"required"`

	Weight          int    `json:"weight"`
	Priority        int    `json:"priority"`
	MinTokens       int    `json:"min_tokens"`
	MaxTokens       int    `json:"max_tokens"`
	SelectionPolicy string `json:"selection_policy"`
	Enabled         *bool  `json:"enabled"`
}

// updateRuleRequest 更新规则请求体（字段均可选）
type updateRuleRequest struct {
	Weight          *int    `json:"weight"`
	Priority        *int    `json:"priority"`
	MinTokens       *int    `json:"min_tokens"`
	MaxTokens       *int    `json:"max_tokens"`
	SelectionPolicy *string `json:"selection_policy"`
	Enabled         *bool   `json:"enabled"`
}

// Create 创建路由规则
// @Summary 创建路由规则
// @Tags admin
// @Router /api/admin/rules [post]
func (h *RuleHandler) Create(c *gin.Context) {
	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}
	if err := validateRuleFields(req.PowerTier, req.TaskType, req.SelectionPolicy, req.Weight); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "VALIDATION_ERROR", "message": err.Error()},
		})
		return
	}

	rule := &models.RoutingRule{
		PowerTier:       req.PowerTier,
		AccountTier:     req.AccountTier,
		TaskType:        req.TaskType,
		ModelID:         req.ModelID,
		Weight:          req.Weight,
		Priority:        req.Priority,
		MinTokens:       req.MinTokens,
		MaxTokens:       req.MaxTokens,
		SelectionPolicy: req.SelectionPolicy,
		Enabled:         true,
	}
	if rule.Weight <= 0 {
		rule.Weight = 100
	}
	if rule.Priority <= 0 {
		rule.Priority = 1
	}
	if rule.SelectionPolicy == "" {
		rule.SelectionPolicy = models.SelectionPolicyWeightedRandom
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := h.repo.Create(rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to create rule"},
		})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// Get 获取单条规则
// @Summary 获取路由规则
// @Tags admin
// @Router /api/admin/rules/{id} [get]
func (h *RuleHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	rule, err := h.repo.FindByID(id)
	if err != nil {
		h.writeRuleError(c, err, "Failed to get rule")
		return
	}
	c.JSON(http.StatusOK, rule)
}

// List 分页获取规则列表
// @Summary 路由规则列表
// @Tags admin
// @Router /api/admin/rules [get]
func (h *RuleHandler) List(c *gin.Context) {
	page, pageSize := parsePagination(c)

	rules, total, err := h.repo.FindAll(page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to list rules"},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rules": rules,
		"pagination": gin.H{
			"page":      page,
			"page_size": pageSize,
			"total":     total,
		},
	})
}

// Update 更新规则
// @Summary 更新路由规则
// @Tags admin
// @Router /api/admin/rules/{id} [put]
func (h *RuleHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	rule, err := h.repo.FindByID(id)
	if err != nil {
		h.writeRuleError(c, err, "Failed to update rule")
		return
	}

	if req.Weight != nil {
		if *req.Weight < 1 || *req.Weight > 100 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"code": "VALIDATION_ERROR", "message": "weight must be between 1 and 100"},
			})
			return
		}
		rule.Weight = *req.Weight
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.MinTokens != nil {
		rule.MinTokens = *req.MinTokens
	}
	if req.MaxTokens != nil {
		rule.MaxTokens = *req.MaxTokens
	}
	if req.SelectionPolicy != nil {
		if err := validateSelectionPolicy(*req.SelectionPolicy); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{"code": "VALIDATION_ERROR", "message": err.Error()},
			})
			return
		}
		rule.SelectionPolicy = *req.SelectionPolicy
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := h.repo.Update(rule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": "Failed to update rule"},
		})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// Delete 删除规则
// @Summary 删除路由规则
// @Tags admin
// @Router /api/admin/rules/{id} [delete]
func (h *RuleHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.repo.Delete(id); err != nil {
		h.writeRuleError(c, err, "Failed to delete rule")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RuleHandler) writeRuleError(c *gin.Context, err error, fallback string) {
	if errors.Is(err, routing.ErrRuleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"code": "NOT_FOUND", "message": "Routing rule not found"},
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{"code": "INTERNAL_ERROR", "message": fallback},
	})
}

// validateRuleFields 创建时的字段合法性校验
func validateRuleFields(powerTier, taskType, selectionPolicy string, weight int) error {
	switch powerTier {
	case models.PowerTierEconomy, models.PowerTierBalanced, models.PowerTierPrecision:
	default:
		return errors.New("unknown power tier: " + powerTier)
	}
	switch taskType {
	case models.TaskTypeChat, models.TaskTypeCompletion, models.TaskTypeEmbedding, models.TaskTypeVision:
	default:
		return errors.New("unknown task type: " + taskType)
	}
	if weight < 0 || weight > 100 {
		return errors.New("weight must be between 1 and 100")
	}
	if selectionPolicy != "" {
		return validateSelectionPolicy(selectionPolicy)
	}
	return nil
}

func validateSelectionPolicy(policy string) error {
	switch policy {
	case models.SelectionPolicyWeightedRandom, models.SelectionPolicyLatencyFirst:
		return nil
	default:
		return errors.New("unknown selection policy: " + policy)
	}
}
