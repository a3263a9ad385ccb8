package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/Luminoxx/Arcturus-API/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrAccountNotFound 账户不存在
	ErrAccountNotFound = errors.New("credit account not found")
	// ErrInsufficientBalance 余额不足
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount 金额必须为正数
	ErrInvalidAmount = errors.New("amount must be positive")
)

// PeriodLength 计费周期长度（滚动 30 天）
const PeriodLength = 30 * 24 * time.Hour

// Service 积分账本
// 余额行与交易流水的唯一写入方。每笔操作在事务内完成：
// 扣费使用带余额条件的 UPDATE，同一账户的并发扣费串行化，
// 余额恒不为负；流水追加写入并记录 balance_after
type Service struct {
	db *gorm.DB
}

// NewService 创建账本实例
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Allocate 分配额度（管理/计费系统调用）
// 账户不存在时创建；已存在时提升余额与周期上限
func (s *Service) Allocate(accountID string, amount decimal.Decimal, tier, reason string) (*models.CreditBalance, error) {
	if amount.IsNegative() || amount.IsZero() {
		return nil, ErrInvalidAmount
	}

	var balance models.CreditBalance
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("account_id = ?", accountID).First(&balance).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			balance = models.CreditBalance{
				AccountID:   accountID,
				Tier:        tier,
				Remaining:   amount,
				Allocated:   amount,
				PeriodStart: time.Now(),
			}
			if err := tx.Create(&balance).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		} else {
			balance.Remaining = balance.Remaining.Add(amount)
			balance.Allocated = balance.Allocated.Add(amount)
			if tier != "" {
				balance.Tier = tier
			}
			if err := tx.Save(&balance).Error; err != nil {
				return err
			}
		}

		return s.appendTransaction(tx, accountID, amount, models.TransactionKindAllocation, balance.Remaining, reason, "")
	})
	if err != nil {
		return nil, err
	}

	return &balance, nil
}

// Deduct 扣费
// amount 大于剩余余额时返回 ErrInsufficientBalance，余额不变；
// 条件 UPDATE 保证 N 个并发扣费正确串行，绝不把余额扣成负数
func (s *Service) Deduct(accountID string, amount decimal.Decimal, reason, metadata string) (*models.CreditBalance, error) {
	if amount.IsNegative() || amount.IsZero() {
		return nil, ErrInvalidAmount
	}

	var balance models.CreditBalance
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.loadForUpdate(tx, accountID, &balance); err != nil {
			return err
		}

		// 余额条件写在 UPDATE 里：并发场景下两个事务不可能
		// 基于同一个 remaining 同时成功
		result := tx.Model(&models.CreditBalance{}).
			Where("account_id = ? AND remaining >= ?", accountID, amount).
			Update("remaining", gorm.Expr("remaining - ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInsufficientBalance
		}

		if err := tx.Where("account_id = ?", accountID).First(&balance).Error; err != nil {
			return err
		}

		return s.appendTransaction(tx, accountID, amount.Neg(), models.TransactionKindDeduction, balance.Remaining, reason, metadata)
	})
	if err != nil {
		return nil, err
	}

	return &balance, nil
}

// ApplyCoupon 优惠券入账
// 提升当期余额但不改变周期额度上限，周期重置时超出部分不保留
func (s *Service) ApplyCoupon(accountID string, amount decimal.Decimal, code string) (*models.CreditBalance, error) {
	if amount.IsNegative() || amount.IsZero() {
		return nil, ErrInvalidAmount
	}

	var balance models.CreditBalance
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.loadForUpdate(tx, accountID, &balance); err != nil {
			return err
		}

		balance.Remaining = balance.Remaining.Add(amount)
		if err := tx.Save(&balance).Error; err != nil {
			return err
		}

		return s.appendTransaction(tx, accountID, amount, models.TransactionKindCoupon, balance.Remaining, "coupon "+code, "")
	})
	if err != nil {
		return nil, err
	}

	return &balance, nil
}

// Refund 退款
// 账户必须存在；余额对称增加
func (s *Service) Refund(accountID string, amount decimal.Decimal, reason string) (*models.CreditBalance, error) {
	if amount.IsNegative() || amount.IsZero() {
		return nil, ErrInvalidAmount
	}

	var balance models.CreditBalance
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.loadForUpdate(tx, accountID, &balance); err != nil {
			return err
		}

		balance.Remaining = balance.Remaining.Add(amount)
		if err := tx.Save(&balance).Error; err != nil {
			return err
		}

		return s.appendTransaction(tx, accountID, amount, models.TransactionKindRefund, balance.Remaining, reason, "")
	})
	if err != nil {
		return nil, err
	}

	return &balance, nil
}

// GetBalance 查询余额（必要时执行周期重置）
func (s *Service) GetBalance(accountID string) (*models.CreditBalance, error) {
	var balance models.CreditBalance
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.loadForUpdate(tx, accountID, &balance)
	})
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// ListTransactions 查询交易流水（分页，时间倒序）
func (s *Service) ListTransactions(accountID string, page, pageSize int) ([]*models.CreditTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	var total int64
	if err := s.db.Model(&models.CreditTransaction{}).
		Where("account_id = ?", accountID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var transactions []*models.CreditTransaction
	offset := (page - 1) * pageSize
	err := s.db.Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(pageSize).
		Find(&transactions).Error
	if err != nil {
		return nil, 0, err
	}

	return transactions, total, nil
}

// ReconcileReport 账本审计结果
type ReconcileReport struct {
	AccountID  string          `json:"account_id"`
	Remaining  decimal.Decimal `json:"remaining"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Consistent bool            `json:"consistent"`
}

// Reconcile 审计：对比余额行与全部流水的带符号和
// 不变量：任意时刻二者恒相等；在同一事务内取两份快照避免并发写造成假偏差
func (s *Service) Reconcile(accountID string) (*ReconcileReport, error) {
	var report ReconcileReport
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var balance models.CreditBalance
		if err := s.loadForUpdate(tx, accountID, &balance); err != nil {
			return err
		}

		var transactions []*models.CreditTransaction
		if err := tx.Where("account_id = ?", accountID).Find(&transactions).Error; err != nil {
			return err
		}

		sum := decimal.Zero
		for _, txn := range transactions {
			sum = sum.Add(txn.Amount)
		}

		report = ReconcileReport{
			AccountID:  accountID,
			Remaining:  balance.Remaining,
			LedgerSum:  sum,
			Consistent: balance.Remaining.Equal(sum),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// loadForUpdate 加载余额行并按需执行周期重置
func (s *Service) loadForUpdate(tx *gorm.DB, accountID string, balance *models.CreditBalance) error {
	err := tx.Where("account_id = ?", accountID).First(balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return err
	}

	return s.maybeReset(tx, balance)
}

// maybeReset 滚动周期到期时把余额重置为周期额度
// 重置以 allocation 交易入账，不做静默覆盖
func (s *Service) maybeReset(tx *gorm.DB, balance *models.CreditBalance) error {
	if time.Since(balance.PeriodStart) < PeriodLength {
		return nil
	}

	delta := balance.Allocated.Sub(balance.Remaining)
	balance.Remaining = balance.Allocated
	balance.PeriodStart = time.Now()
	if err := tx.Save(balance).Error; err != nil {
		return err
	}

	if delta.IsZero() {
		return nil
	}

	reason := fmt.Sprintf("periodic reset to allocated %s", balance.Allocated.String())
	return s.appendTransaction(tx, balance.AccountID, delta, models.TransactionKindAllocation, balance.Remaining, reason, "")
}

// appendTransaction 追加一条流水
func (s *Service) appendTransaction(tx *gorm.DB, accountID string, amount decimal.Decimal, kind string, balanceAfter decimal.Decimal, reason, metadata string) error {
	txn := &models.CreditTransaction{
		AccountID:    accountID,
		Amount:       amount,
		Kind:         kind,
		BalanceAfter: balanceAfter,
		Reason:       reason,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}
	return tx.Create(txn).Error
}
