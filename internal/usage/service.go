package usage

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Luminoxx/Arcturus-API/internal/models"
)

// Service 用量计量服务
// 终态记录只写一次，聚合查询供账单与面板使用
type Service struct {
	repo *Repository
}

// NewService 创建用量计量服务
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Record 记录一次请求的终态用量
// 重复的请求 ID 静默忽略，保证编排器重试路径上的幂等
func (s *Service) Record(event *models.UsageEvent) error {
	if event.RequestID == "" {
		return errors.New("请求 ID 不能为空")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	err := s.repo.Create(event)
	if errors.Is(err, ErrDuplicateRequestID) {
		return nil
	}
	return err
}

// ListByAccount 按账户分页查询用量事件
func (s *Service) ListByAccount(accountID string, from, to time.Time, page, pageSize int) ([]*models.UsageEvent, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.FindByAccount(accountID, from, to, page, pageSize)
}

// GetByRequestID 按请求 ID 查询单条用量事件
func (s *Service) GetByRequestID(requestID string) (*models.UsageEvent, error) {
	event, err := s.repo.FindByRequestID(requestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return event, err
}

// AccountSummary 账户用量汇总
type AccountSummary struct {
	AccountID string            `json:"account_id"`
	From      time.Time         `json:"from"`
	To        time.Time         `json:"to"`
	ByModel   []*ModelAggregate `json:"by_model"`
	ByDay     []*DailyAggregate `json:"by_day"`
}

// Summarize 聚合账户的模型维度与日维度用量
// 时间范围为空时默认最近 30 天
func (s *Service) Summarize(accountID string, from, to time.Time) (*AccountSummary, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.Add(-30 * 24 * time.Hour)
	}

	byModel, err := s.repo.AggregateByModel(accountID, from, to)
	if err != nil {
		return nil, err
	}
	byDay, err := s.repo.AggregateByDay(accountID, from, to)
	if err != nil {
		return nil, err
	}

	return &AccountSummary{
		AccountID: accountID,
		From:      from,
		To:        to,
		ByModel:   byModel,
		ByDay:     byDay,
	}, nil
}

// StatusBreakdown 全局状态分布（运维面板）
func (s *Service) StatusBreakdown(window time.Duration) (map[string]int64, error) {
	var from time.Time
	if window > 0 {
		from = time.Now().Add(-window)
	}
	return s.repo.CountByStatus(from)
}
