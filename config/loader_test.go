// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "data", cfg.Memory.DataDir)
	assert.True(t, cfg.Memory.AutoSelect)
	assert.Equal(t, "vector", cfg.Memory.Backend)
	assert.Equal(t, "rolling", cfg.Memory.Default)
	assert.Equal(t, 8, cfg.Memory.ContextBudget)
	assert.Equal(t, 20, cfg.Memory.SummaryThreshold)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Empty(t, cfg.Database.DSN())

	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)

	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 300, cfg.LLM.MaxTokens)
	assert.Equal(t, 40, cfg.LLM.TopK)

	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimension)

	assert.Equal(t, "aiclone", cfg.Telemetry.ServiceName)
	assert.Equal(t, "aiclone", cfg.Metrics.Namespace)

	assert.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "aiclone.yaml")
	yamlContent := `
memory:
  data_dir: /var/lib/aiclone
  auto_select: false
  backend: keyword
  context_budget: 12

database:
  driver: postgres
  host: db.internal
  name: clones

redis:
  enabled: true
  addr: "redis.example.com:6379"
  ttl: 1h

llm:
  model: mistral
  timeout: 45s

log:
  level: debug
  output_paths: [stdout, /tmp/aiclone.log]
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/aiclone", cfg.Memory.DataDir)
	assert.False(t, cfg.Memory.AutoSelect)
	assert.Equal(t, "keyword", cfg.Memory.Backend)
	assert.Equal(t, 12, cfg.Memory.ContextBudget)
	// 未出现的字段保留默认值
	assert.Equal(t, "rolling", cfg.Memory.Default)

	assert.Equal(t, "host=db.internal port=5432 user=aiclone password= dbname=clones sslmode=disable", cfg.Database.DSN())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, []string{"stdout", "/tmp/aiclone.log"}, cfg.Log.OutputPaths)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("AICLONE_MEMORY_BACKEND", "rolling")
	t.Setenv("AICLONE_MEMORY_AUTO_SELECT", "false")
	t.Setenv("AICLONE_LLM_TEMPERATURE", "0.2")
	t.Setenv("AICLONE_LLM_TIMEOUT", "5s")
	t.Setenv("AICLONE_REDIS_ADDR", "env-redis:6379")
	t.Setenv("AICLONE_LOG_OUTPUT_PATHS", "stdout, stderr")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "rolling", cfg.Memory.Backend)
	assert.False(t, cfg.Memory.AutoSelect)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"stdout", "stderr"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "aiclone.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  model: yaml-model\n  base_url: http://yaml:11434\n"), 0o644))

	t.Setenv("AICLONE_LLM_MODEL", "env-model")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "env-model", cfg.LLM.Model)
	assert.Equal(t, "http://yaml:11434", cfg.LLM.BaseURL)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYCLONE_MEMORY_DATA_DIR", "/srv/clones")

	cfg, err := NewLoader().WithEnvPrefix("MYCLONE").Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/clones", cfg.Memory.DataDir)
}

func TestLoader_BadEnvValue(t *testing.T) {
	t.Setenv("AICLONE_MEMORY_CONTEXT_BUDGET", "lots")

	_, err := NewLoader().Load()
	assert.ErrorContains(t, err, "AICLONE_MEMORY_CONTEXT_BUDGET")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("AICLONE_MEMORY_BACKEND", "graph")

	_, err := NewLoader().WithValidator((*Config).Validate).Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, `unknown memory.backend "graph"`)
}

func TestConfig_ValidateLegacyBackendNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Memory.Backend = "sqlite_vec"
	cfg.Memory.Default = "simple"
	assert.NoError(t, cfg.Validate())
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("memory: [unclosed"), 0o644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty data dir", func(c *Config) { c.Memory.DataDir = "" }, "memory.data_dir is required"},
		{"unknown default", func(c *Config) { c.Memory.Default = "lsm" }, `unknown memory.default "lsm"`},
		{"zero budget", func(c *Config) { c.Memory.ContextBudget = 0 }, "memory.context_budget must be positive"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mongo" }, `unknown database.driver "mongo"`},
		{"no llm url", func(c *Config) { c.LLM.BaseURL = "" }, "llm.base_url is required"},
		{"hot temperature", func(c *Config) { c.LLM.Temperature = 3 }, "llm.temperature must be between 0 and 2"},
		{"bad embedder", func(c *Config) { c.Embedding.Provider = "openai" }, `unknown embedding.provider "openai"`},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }, "embedding.dimension must be positive"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "telemetry.sample_rate must be between 0 and 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "postgres",
			cfg:  DatabaseConfig{Driver: "postgres", Host: "localhost", Port: 5432, User: "u", Password: "p", Name: "db", SSLMode: "disable"},
			want: "host=localhost port=5432 user=u password=p dbname=db sslmode=disable",
		},
		{
			name: "mysql",
			cfg:  DatabaseConfig{Driver: "mysql", Host: "localhost", Port: 3306, User: "root", Password: "secret", Name: "clones"},
			want: "root:secret@tcp(localhost:3306)/clones?parseTime=true",
		},
		{
			name: "sqlite",
			cfg:  DatabaseConfig{Driver: "sqlite", Name: "/data/vectors.db"},
			want: "/data/vectors.db",
		},
		{
			name: "unknown",
			cfg:  DatabaseConfig{Driver: "oracle"},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}
