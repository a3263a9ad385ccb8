package usage

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Luminoxx/Arcturus-API/internal/models"
)

var (
	// ErrDuplicateRequestID 同一请求 ID 已记录过终态
	ErrDuplicateRequestID = errors.New("用量事件已存在")
)

// Repository 用量事件数据访问层
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建用量事件 Repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 写入一条用量事件
// 每个请求 ID 只允许一条终态记录，唯一索引兜底并发写入
func (r *Repository) Create(event *models.UsageEvent) error {
	var count int64
	if err := r.db.Model(&models.UsageEvent{}).
		Where("request_id = ?", event.RequestID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateRequestID
	}

	if err := r.db.Create(event).Error; err != nil {
		// 两个写者同时通过上面的检查时由唯一索引裁决，
		// 输掉的一方把约束冲突翻译成重复请求错误
		if errors.Is(err, gorm.ErrDuplicatedKey) || r.requestIDExists(event.RequestID) {
			return ErrDuplicateRequestID
		}
		return err
	}
	return nil
}

func (r *Repository) requestIDExists(requestID string) bool {
	var count int64
	if err := r.db.Model(&models.UsageEvent{}).
		Where("request_id = ?", requestID).
		Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// FindByAccount 按账户分页查询用量事件（倒序）
func (r *Repository) FindByAccount(accountID string, from, to time.Time, page, pageSize int) ([]*models.UsageEvent, int64, error) {
	query := r.db.Model(&models.UsageEvent{}).Where("account_id = ?", accountID)
	if !from.IsZero() {
		query = query.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("created_at < ?", to)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var events []*models.UsageEvent
	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC, id DESC").
		Offset(offset).Limit(pageSize).
		Find(&events).Error; err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// FindByRequestID 按请求 ID 查询
func (r *Repository) FindByRequestID(requestID string) (*models.UsageEvent, error) {
	var event models.UsageEvent
	if err := r.db.Where("request_id = ?", requestID).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// ModelAggregate 按模型聚合结果
type ModelAggregate struct {
	ModelName        string          `json:"model_name"`
	RequestCount     int64           `json:"request_count"`
	PromptTokens     int64           `json:"prompt_tokens"`
	CompletionTokens int64           `json:"completion_tokens"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	AvgLatencyMs     float64         `json:"avg_latency_ms"`
}

// DailyAggregate 按天聚合结果
type DailyAggregate struct {
	Day              string          `json:"day"`
	RequestCount     int64           `json:"request_count"`
	PromptTokens     int64           `json:"prompt_tokens"`
	CompletionTokens int64           `json:"completion_tokens"`
	TotalCost        decimal.Decimal `json:"total_cost"`
}

// AggregateByModel 按模型聚合账户用量
func (r *Repository) AggregateByModel(accountID string, from, to time.Time) ([]*ModelAggregate, error) {
	query := r.db.Model(&models.UsageEvent{}).
		Select("model_name, COUNT(*) AS request_count, "+
			"SUM(prompt_tokens) AS prompt_tokens, SUM(completion_tokens) AS completion_tokens, "+
			"SUM(cost) AS total_cost, AVG(latency_ms) AS avg_latency_ms").
		Where("account_id = ? AND status = ?", accountID, models.UsageStatusSuccess)
	if !from.IsZero() {
		query = query.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("created_at < ?", to)
	}

	var rows []*ModelAggregate
	if err := query.Group("model_name").Order("total_cost DESC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// AggregateByDay 按天聚合账户用量
func (r *Repository) AggregateByDay(accountID string, from, to time.Time) ([]*DailyAggregate, error) {
	query := r.db.Model(&models.UsageEvent{}).
		Select("DATE(created_at) AS day, COUNT(*) AS request_count, "+
			"SUM(prompt_tokens) AS prompt_tokens, SUM(completion_tokens) AS completion_tokens, "+
			"SUM(cost) AS total_cost").
		Where("account_id = ? AND status = ?", accountID, models.UsageStatusSuccess)
	if !from.IsZero() {
		query = query.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("created_at < ?", to)
	}

	var rows []*DailyAggregate
	if err := query.Group("DATE(created_at)").Order("day ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByStatus 全局按状态统计（运维面板用）
func (r *Repository) CountByStatus(from time.Time) (map[string]int64, error) {
	type statusRow struct {
		Status string
		Count  int64
	}
	query := r.db.Model(&models.UsageEvent{}).
		Select("status, COUNT(*) AS count")
	if !from.IsZero() {
		query = query.Where("created_at >= ?", from)
	}

	var rows []statusRow
	if err := query.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}
