package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrMissingEncryptionKey 缺少加密密钥
	// 密钥缺失时服务必须拒绝启动，绝不允许明文落库
	ErrMissingEncryptionKey = errors.New("missing ENCRYPTION_KEY environment variable")
	// ErrInvalidEncryptionKey 加密密钥格式错误
	ErrInvalidEncryptionKey = errors.New("invalid ENCRYPTION_KEY: must be 32 bytes (Base64 encoded)")
)

// LoadEncryptionKey 从环境变量加载加密密钥
// 密钥由进程启动时注入，本核心不持久化密钥本身
func LoadEncryptionKey() ([]byte, error) {
	keyStr := os.Getenv("ENCRYPTION_KEY")
	if keyStr == "" {
		return nil, ErrMissingEncryptionKey
	}

	key, err := base64.StdEncoding.DecodeString(keyStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ENCRYPTION_KEY: %w", err)
	}

	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrInvalidEncryptionKey, len(key), KeySize)
	}

	return key, nil
}

// GenerateEncryptionKey 生成新的加密密钥（运维初始化用）
// 返回 Base64 编码的密钥字符串
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate encryption key: %w", err)
	}

	return base64.StdEncoding.EncodeToString(key), nil
}
