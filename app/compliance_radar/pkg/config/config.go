package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 支持的数据源
const (
	ProviderFake = "fake"
	ProviderHTTP = "http"
)

// DefaultDaysBack 未配置 days_back 时的查询窗口（天）
const DefaultDaysBack = 30

// Config 项目配置结构体
type Config struct {
	Provider    string            `yaml:"provider"`
	AlertCount  int               `yaml:"alert_count"`
	DaysBack    int               `yaml:"days_back"` // 0 表示不限制起始日期
	Fake        FakeConfig        `yaml:"fake"`
	HTTP        HTTPConfig        `yaml:"http"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Output      OutputConfig      `yaml:"output"`
	Log         LogConfig         `yaml:"log"`
	DB          DBConfig          `yaml:"db"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
}

// FakeConfig 模拟数据源配置
type FakeConfig struct {
	Seed int64 `yaml:"seed"` // 0 表示按当前时间取种子
}

// HTTPConfig 真实接口配置
type HTTPConfig struct {
	InternalBaseURL string `yaml:"internal_base_url"` // 告警 ID 列表接口
	PublicBaseURL   string `yaml:"public_base_url"`   // 告警详情接口
	APIKey          string `yaml:"api_key"`
	Timeout         int    `yaml:"timeout"` // 秒
	Status          string `yaml:"status"`
}

// ConcurrencyConfig 限流配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// OutputConfig 输出文件配置
type OutputConfig struct {
	BaseDir  string            `yaml:"base_dir"`
	BaseName string            `yaml:"base_name"`
	Labels   map[string]string `yaml:"labels"` // 汇总表中的分类名称
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DBConfig 运行历史存储配置，Driver 为空时不启用
type DBConfig struct {
	Driver   string `yaml:"driver"` // postgres | sqlite3
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"` // sqlite3 文件路径
}

// ScheduleConfig 定时任务配置
type ScheduleConfig struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

// LoadConfig 从指定路径加载配置。文件不存在时只使用默认值和环境变量。
func LoadConfig(path string) (*Config, error) {
	// .env 可选
	_ = godotenv.Load()

	// days_back 的默认值在解析前设置，显式的 0 不会被覆盖
	cfg := Config{DaysBack: DefaultDaysBack}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	envOverride(&c.Provider, "COMPLIANCE_PROVIDER")
	envOverrideInt(&c.AlertCount, "COMPLIANCE_ALERT_COUNT")
	envOverrideInt(&c.DaysBack, "COMPLIANCE_DAYS_BACK")
	envOverride(&c.HTTP.APIKey, "COMPLIANCE_API_KEY")
	envOverride(&c.HTTP.InternalBaseURL, "COMPLIANCE_INTERNAL_URL")
	envOverride(&c.HTTP.PublicBaseURL, "COMPLIANCE_PUBLIC_URL")
	envOverride(&c.Output.BaseDir, "COMPLIANCE_OUTPUT_DIR")
	envOverride(&c.Log.Level, "COMPLIANCE_LOG_LEVEL")
	envOverride(&c.DB.Driver, "COMPLIANCE_DB_DRIVER")
	envOverride(&c.DB.Password, "COMPLIANCE_DB_PASSWORD")
	envOverride(&c.DB.Path, "COMPLIANCE_DB_PATH")
	envOverride(&c.Schedule.Cron, "COMPLIANCE_SCHEDULE")
}

// ApplyDefaults 填充默认值
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderFake
	}
	if c.AlertCount == 0 {
		c.AlertCount = 100
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = 10
	}
	if c.HTTP.Status == "" {
		c.HTTP.Status = "active"
	}
	if c.Output.BaseDir == "" {
		c.Output.BaseDir = "."
	}
	if c.Output.BaseName == "" {
		c.Output.BaseName = "compliance_alerts"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File == "" {
		c.Log.File = "compliance_monitor.log"
	}
	if c.DB.Driver == "postgres" && c.DB.Port == 0 {
		c.DB.Port = 5432
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "0 8 * * *"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Local"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.AlertCount < 0 {
		return fmt.Errorf("alert_count must be positive, got %d", c.AlertCount)
	}
	if c.DaysBack < 0 {
		return fmt.Errorf("days_back must not be negative, got %d", c.DaysBack)
	}
	switch c.Provider {
	case ProviderFake:
	case ProviderHTTP:
		if c.HTTP.APIKey == "" {
			return fmt.Errorf("http.api_key is required when provider=http")
		}
		if c.HTTP.InternalBaseURL == "" || c.HTTP.PublicBaseURL == "" {
			return fmt.Errorf("http.internal_base_url and http.public_base_url are required when provider=http")
		}
	default:
		return fmt.Errorf("unknown provider: %s", c.Provider)
	}
	switch c.DB.Driver {
	case "", "postgres", "sqlite3":
	default:
		return fmt.Errorf("unknown db driver: %s", c.DB.Driver)
	}
	return nil
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
