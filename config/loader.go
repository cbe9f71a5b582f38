// =============================================================================
// 📦 AIClone 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("aiclone.yaml").
//	    WithEnvPrefix("AICLONE").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/aiclone/memory"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 AIClone 的完整配置结构
type Config struct {
	// Memory 记忆后端配置
	Memory MemoryConfig `yaml:"memory" env:"MEMORY"`

	// Database 向量记忆数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis 嵌入缓存配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// LLM Ollama 生成配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Embedding 嵌入模型配置
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics Prometheus 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// MemoryConfig 记忆配置
type MemoryConfig struct {
	// 数据根目录
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`
	// 是否按偏好顺序自动选择后端
	AutoSelect bool `yaml:"auto_select" env:"AUTO_SELECT"`
	// 后端类型: rolling, keyword, vector（兼容 simple、enhanced、sqlite_vec）
	Backend string `yaml:"backend" env:"BACKEND"`
	// 回退后端
	Default string `yaml:"default" env:"DEFAULT"`
	// 消息日志存储: file, memory
	StoreType string `yaml:"store_type" env:"STORE_TYPE"`
	// 每 N 条消息写一次日志文件
	SaveEvery int `yaml:"save_every" env:"SAVE_EVERY"`
	// 每 N 条消息生成一次对话摘要
	SummaryThreshold int `yaml:"summary_threshold" env:"SUMMARY_THRESHOLD"`
	// 每 N 条消息写一次关键词索引快照
	IndexSaveEvery int `yaml:"index_save_every" env:"INDEX_SAVE_EVERY"`
	// 保留的摘要条数
	MaxSummaries int `yaml:"max_summaries" env:"MAX_SUMMARIES"`
	// 每轮对话的上下文条数
	ContextBudget int `yaml:"context_budget" env:"CONTEXT_BUDGET"`
	// 向量后端批量写入阈值
	VectorBatchSize int `yaml:"vector_batch_size" env:"VECTOR_BATCH_SIZE"`
	// 关闭向量索引，相似度查询退化为子串匹配
	DisableVectorIndex bool `yaml:"disable_vector_index" env:"DISABLE_VECTOR_INDEX"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: sqlite, postgres, mysql
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名；sqlite 下为文件路径，留空则每个人设一个文件
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 是否启用 Redis 嵌入缓存
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
	// 缓存过期时间
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// 启用 TLS
	TLS bool `yaml:"tls" env:"TLS"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	// Ollama 地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 生成模型
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 每秒请求数，<= 0 不限流
	RateLimit float64 `yaml:"rate_limit" env:"RATE_LIMIT"`
	// 突发请求数
	Burst int `yaml:"burst" env:"BURST"`
	// 采样参数
	Temperature   float64 `yaml:"temperature" env:"TEMPERATURE"`
	TopP          float64 `yaml:"top_p" env:"TOP_P"`
	MaxTokens     int     `yaml:"max_tokens" env:"MAX_TOKENS"`
	RepeatPenalty float64 `yaml:"repeat_penalty" env:"REPEAT_PENALTY"`
	TopK          int     `yaml:"top_k" env:"TOP_K"`
}

// EmbeddingConfig 嵌入配置
type EmbeddingConfig struct {
	// 提供方: hash, ollama
	Provider string `yaml:"provider" env:"PROVIDER"`
	// Ollama 嵌入模型
	Model string `yaml:"model" env:"MODEL"`
	// 向量维度
	Dimension int `yaml:"dimension" env:"DIMENSION"`
	// 本地 LRU 容量
	CacheSize int `yaml:"cache_size" env:"CACHE_SIZE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
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

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否暴露 /metrics
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 监听地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AICLONE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置，文件不存在时保留默认值
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段，键为 PREFIX_SECTION_FIELD
func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// time.Duration 按 "30s" 形式解析
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// ErrInvalidConfig 标记配置校验失败
var ErrInvalidConfig = errors.New("invalid config")

var validDrivers = map[string]bool{"sqlite": true, "postgres": true, "mysql": true}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Memory.DataDir == "" {
		errs = append(errs, "memory.data_dir is required")
	}
	if _, err := memory.ParseKind(c.Memory.Backend); err != nil {
		errs = append(errs, fmt.Sprintf("unknown memory.backend %q", c.Memory.Backend))
	}
	if _, err := memory.ParseKind(c.Memory.Default); err != nil {
		errs = append(errs, fmt.Sprintf("unknown memory.default %q", c.Memory.Default))
	}
	if c.Memory.ContextBudget <= 0 {
		errs = append(errs, "memory.context_budget must be positive")
	}
	if !validDrivers[c.Database.Driver] {
		errs = append(errs, fmt.Sprintf("unknown database.driver %q", c.Database.Driver))
	}
	if c.LLM.BaseURL == "" {
		errs = append(errs, "llm.base_url is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "llm.temperature must be between 0 and 2")
	}
	if c.Embedding.Provider != "hash" && c.Embedding.Provider != "ollama" {
		errs = append(errs, fmt.Sprintf("unknown embedding.provider %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, "embedding.dimension must be positive")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串；sqlite 且未指定文件时返回空串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
