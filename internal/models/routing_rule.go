package models

import "time"

// 任务类型常量
const (
	TaskTypeChat       = "chat"
	TaskTypeCompletion = "completion"
	TaskTypeEmbedding  = "embedding"
	TaskTypeVision     = "vision"
)

// 候选选择策略常量
const (
	SelectionPolicyWeightedRandom = "weighted_random" // 加权随机（默认）
	SelectionPolicyLatencyFirst   = "latency_first"   // 平均延迟最低优先
)

// RoutingRule 路由规则
// 将 (算力档位 × 账户档位 × 任务类型) 映射到一个候选模型，
// 同一三元组下的多条规则构成带权重和回退顺序的候选集合
type RoutingRule struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	PowerTier   string `gorm:"type:varchar(20);not null;index:idx_rule_match" json:"power_tier"`
	AccountTier string `gorm:"type:varchar(20);not null;index:idx_rule_match" json:"account_tier"`
	TaskType    string `gorm:"type:varchar(30);not null;index:idx_rule_match" json:"task_type"`

	ModelID uint `gorm:"not null;index" json:"model_id"`

	Weight   int `gorm:"not null" json:"weight"`   // 1-100，用于加权随机
	Priority int `gorm:"not null" json:"priority"` // 回退顺序，数字越小越先尝试

	// 规则级约束，0 表示不限
	MinTokens int `gorm:"not null;default:0" json:"min_tokens"`
	MaxTokens int `gorm:"not null;default:0" json:"max_tokens"`

	SelectionPolicy string `gorm:"type:varchar(30);not null;default:'weighted_random'" json:"selection_policy"`

	Enabled   bool      `gorm:"not null" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 外键关系：belongs-to，以本表的 model_id 列驱动连接。
	// 不能写 foreignKey:ModelID —— Model 结构体自身也有 ModelID 字段，
	// 该写法会被解析成挂在 llm_models.model_id 上的 has-one
	Model Model `gorm:"constraint:OnDelete:CASCADE" json:"model,omitempty"`
}

// TableName 指定表名
func (RoutingRule) TableName() string {
	return "routing_rules"
}
