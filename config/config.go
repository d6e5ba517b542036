package config

import (
	"fmt"
	"time"
)

// Config 是 QueryFlow 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// LLM 补全端口配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Database 业务数据库配置（SQL 查询在此执行）
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis 对话存储配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Conversation 对话上下文配置
	Conversation ConversationConfig `yaml:"conversation" env:"CONVERSATION"`

	// Workflow 工作流引擎配置
	Workflow WorkflowConfig `yaml:"workflow" env:"WORKFLOW"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LLMConfig 补全端口配置
type LLMConfig struct {
	// 基础 URL（OpenAI 兼容端点）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 客户端限流 QPS，0 表示不限流
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	// 限流突发量
	RateBurst int `yaml:"rate_burst" env:"RATE_BURST"`
}

// DatabaseConfig 业务数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// DSN 连接串（sqlite 时为文件路径）
	DSN string `yaml:"dsn" env:"DSN"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 单次查询返回行数上限
	MaxRows int `yaml:"max_rows" env:"MAX_ROWS"`
	// 模式元数据缓存时长
	SchemaCacheTTL time.Duration `yaml:"schema_cache_ttl" env:"SCHEMA_CACHE_TTL"`
}

// RedisConfig Redis 配置。Addr 为空时对话存储退化为进程内存。
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
}

// ConversationConfig 对话上下文配置
type ConversationConfig struct {
	// 单会话保留的最大消息数
	MaxMessages int `yaml:"max_messages" env:"MAX_MESSAGES"`
	// 提交给补全端口的上下文 Token 预算
	ContextTokenBudget int `yaml:"context_token_budget" env:"CONTEXT_TOKEN_BUDGET"`
	// 会话过期时间
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// WorkflowConfig 工作流引擎配置
type WorkflowConfig struct {
	// 单次运行的步数预算
	MaxSteps int `yaml:"max_steps" env:"MAX_STEPS"`
	// SQL 生成回环的重试上限
	SQLRetryLimit int `yaml:"sql_retry_limit" env:"SQL_RETRY_LIMIT"`
	// 表批准被拒后重新识别的次数上限
	TableApprovalRetryLimit int `yaml:"table_approval_retry_limit" env:"TABLE_APPROVAL_RETRY_LIMIT"`
	// 整次运行的超时，由调用方包裹 Engine.Run
	RunTimeout time.Duration `yaml:"run_timeout" env:"RUN_TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// DefaultConfig 返回带默认值的配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9090,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:   "https://api.openai.com",
			Model:     "gpt-4o-mini",
			Timeout:   60 * time.Second,
			RateLimit: 0,
			RateBurst: 1,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "queryflow.db",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			MaxRows:         100,
			SchemaCacheTTL:  5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:       0,
			PoolSize: 10,
		},
		Conversation: ConversationConfig{
			MaxMessages:        50,
			ContextTokenBudget: 4000,
			TTL:                24 * time.Hour,
		},
		Workflow: WorkflowConfig{
			MaxSteps:                50,
			SQLRetryLimit:           3,
			TableApprovalRetryLimit: 2,
			RunTimeout:              2 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "queryflow",
			SampleRate:   1.0,
		},
	}
}

// Validate 校验配置的基本约束
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.Server.HTTPPort)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Workflow.MaxSteps <= 0 {
		return fmt.Errorf("workflow.max_steps must be positive")
	}
	if c.Workflow.SQLRetryLimit < 1 {
		return fmt.Errorf("workflow.sql_retry_limit must be at least 1")
	}
	if c.Workflow.TableApprovalRetryLimit < 0 {
		return fmt.Errorf("workflow.table_approval_retry_limit must not be negative")
	}
	return nil
}
