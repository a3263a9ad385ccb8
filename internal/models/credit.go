package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// 交易类型常量
const (
	TransactionKindAllocation = "allocation" // 额度分配/周期重置
	TransactionKindDeduction  = "deduction"  // 请求扣费
	TransactionKindRefund     = "refund"     // 退款
	TransactionKindCoupon     = "coupon"     // 优惠券入账
)

// CreditBalance 账户积分余额
// 每个计费账户（用户或组织）一行，remaining 恒 >= 0，
// 余额仅由 ledger 包写入
type CreditBalance struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	AccountID string `gorm:"type:varchar(100);uniqueIndex;not null" json:"account_id"`
	Tier      string `gorm:"type:varchar(20);not null;default:'free'" json:"tier"`

	Remaining decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"remaining"`
	Allocated decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"allocated"` // 当前周期的额度上限

	PeriodStart time.Time `gorm:"not null" json:"period_start"` // 当前计费周期起点

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (CreditBalance) TableName() string {
	return "credit_balances"
}

// CreditTransaction 积分交易流水
// 追加写入，不可修改或删除；任一账户全部流水的带符号和恒等于其当前余额
type CreditTransaction struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	AccountID string `gorm:"type:varchar(100);not null;index:idx_account_created" json:"account_id"`

	Amount       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"` // 带符号金额，扣费为负
	Kind         string          `gorm:"type:varchar(20);not null" json:"kind"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance_after"`

	Reason   string `gorm:"type:varchar(500)" json:"reason"`
	Metadata string `gorm:"type:text" json:"metadata,omitempty"` // JSON 格式的附加信息

	CreatedAt time.Time `gorm:"index:idx_account_created" json:"created_at"`
}

// TableName 指定表名
func (CreditTransaction) TableName() string {
	return "credit_transactions"
}
