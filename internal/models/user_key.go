package models

import "time"

// UserProviderKey 用户自带密钥 (BYOK)
// (account_id, provider_id) 唯一，同一对至多存在一条有效凭证。
// 密钥加密存储，除路由内部的解密通道外不得以明文返回
type UserProviderKey struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	AccountID  string `gorm:"type:varchar(100);not null;uniqueIndex:idx_account_provider" json:"account_id"`
	ProviderID uint   `gorm:"not null;uniqueIndex:idx_account_provider" json:"provider_id"`

	EncryptedKey string `gorm:"type:text;not null" json:"-"`

	// 脱敏展示用的前后缀
	KeyPrefix string `gorm:"type:varchar(12);not null" json:"key_prefix"`
	KeySuffix string `gorm:"type:varchar(8);not null" json:"key_suffix"`

	IsValid    bool       `gorm:"not null;default:true" json:"is_valid"` // 被供应商拒绝后置为 false
	UseCount   int64      `gorm:"not null;default:0" json:"use_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 外键关系
	Provider Provider `gorm:"foreignKey:ProviderID;constraint:OnDelete:CASCADE" json:"provider,omitempty"`
}

// TableName 指定表名
func (UserProviderKey) TableName() string {
	return "user_provider_keys"
}
