package config

import (
	"fmt"
	"os"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`              // 数据库文件路径
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大生命周期
	AutoMigrate     bool          `mapstructure:"auto_migrate"`      // 是否自动迁移
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	AdminKey string `mapstructure:"admin_key"` // 管理接口访问密钥
	LogLevel string `mapstructure:"log_level"`
}

// HealthConfig 健康监控配置
type HealthConfig struct {
	Interval     time.Duration `mapstructure:"interval"`      // 巡检周期
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"` // 单次探测超时
	SlowLatency  time.Duration `mapstructure:"slow_latency"`  // 超过该延迟判定为 degraded
}

// OrchestratorConfig 请求编排配置
type OrchestratorConfig struct {
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"` // 单次供应商调用超时
	MaxAttempts     int           `mapstructure:"max_attempts"`     // 含回退的最大尝试次数
}

// Config 应用配置
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Health       HealthConfig       `mapstructure:"health"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
}

// LoadConfig 加载配置（默认值 + 环境变量覆盖）
func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:     8080,
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Path:            "./data/arcturus.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			AutoMigrate:     true,
		},
		Health: HealthConfig{
			Interval:     5 * time.Minute,
			ProbeTimeout: 10 * time.Second,
			SlowLatency:  3 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			DispatchTimeout: 60 * time.Second,
			MaxAttempts:     3,
		},
	}

	// 支持环境变量覆盖
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			config.Server.Port = p
		}
	}

	if adminKey := os.Getenv("ADMIN_KEY"); adminKey != "" {
		config.Server.AdminKey = adminKey
	}

	if interval := os.Getenv("HEALTH_CHECK_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			config.Health.Interval = d
		}
	}

	if timeout := os.Getenv("DISPATCH_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			config.Orchestrator.DispatchTimeout = d
		}
	}

	return config, nil
}
