// Package config provides configuration loading, defaults, and validation.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Wei-Shaw/csp2api/internal/pkg/csp"
)

type Config struct {
	Server   ServerConfig `mapstructure:"server"`
	Log      LogConfig    `mapstructure:"log"`
	CSP      CSPConfig    `mapstructure:"csp"`
	Alerts   AlertsConfig `mapstructure:"alerts"`
	Timezone string       `mapstructure:"timezone"` // e.g. "Asia/Shanghai", "UTC"
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// gin 运行模式：debug / release / test
	Mode              string `mapstructure:"mode"`
	ReadHeaderTimeout int    `mapstructure:"read_header_timeout"` // 秒
	IdleTimeout       int    `mapstructure:"idle_timeout"`        // 秒
}

type LogConfig struct {
	Level       string            `mapstructure:"level"`
	Format      string            `mapstructure:"format"`
	ServiceName string            `mapstructure:"service_name"`
	Environment string            `mapstructure:"env"`
	Caller      bool              `mapstructure:"caller"`
	Output      LogOutputConfig   `mapstructure:"output"`
	Rotation    LogRotationConfig `mapstructure:"rotation"`
}

type LogOutputConfig struct {
	ToStdout bool   `mapstructure:"to_stdout"`
	ToFile   bool   `mapstructure:"to_file"`
	FilePath string `mapstructure:"file_path"`
}

type LogRotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// CSPConfig configures the CSP auth endpoints and the token cache policy.
type CSPConfig struct {
	// 两个授权端点：API token 换取 与 client_credentials
	APITokenURL string `mapstructure:"api_token_url"`
	OAuthURL    string `mapstructure:"oauth_token_url"`

	// 提前刷新的安全余量（秒）。token 在 expires_in - clock_skew 后刷新。
	ClockSkewSeconds int `mapstructure:"clock_skew_seconds"`
	// 获取失败后的重试间隔（秒）
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds"`

	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
	// 可选代理，支持 http/https/socks5
	ProxyURL string `mapstructure:"proxy_url"`
}

func (c CSPConfig) ClockSkew() time.Duration {
	return time.Duration(c.ClockSkewSeconds) * time.Second
}

func (c CSPConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func (c CSPConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// AlertsConfig configures the downstream alert relay that consumes cached
// tokens. Either principal may be left empty to disable that flow.
type AlertsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BaseURL  string `mapstructure:"base_url"`
	TenantID string `mapstructure:"tenant_id"`
	// 轮询间隔（分钟）
	IntervalMinutes int `mapstructure:"interval_minutes"`
	// 提取告警条数的 gjson 路径，为空时按顶层数组处理
	CountPath string `mapstructure:"count_path"`

	// 用户 API token 主体
	APIToken string `mapstructure:"api_token"`
	// OAuth server-to-server app 主体
	OAuthAppID     string `mapstructure:"oauth_app_id"`
	OAuthAppSecret string `mapstructure:"oauth_app_secret"`
	OrgID          string `mapstructure:"org_id"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Add config paths in priority order
	// 1. DATA_DIR environment variable (highest priority)
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		viper.AddConfigPath(dataDir)
	}
	// 2. Docker data directory
	viper.AddConfigPath("/app/data")
	// 3. Current directory
	viper.AddConfigPath(".")
	// 4. Config subdirectory
	viper.AddConfigPath("./config")
	// 5. System config directory
	viper.AddConfigPath("/etc/csp2api")

	// 环境变量支持
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config error: %w", err)
		}
		// 配置文件不存在时使用默认值
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}

	cfg.Server.Mode = strings.ToLower(strings.TrimSpace(cfg.Server.Mode))
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Log.ServiceName = strings.TrimSpace(cfg.Log.ServiceName)
	cfg.Log.Environment = strings.TrimSpace(cfg.Log.Environment)
	cfg.Log.Output.FilePath = strings.TrimSpace(cfg.Log.Output.FilePath)
	cfg.CSP.APITokenURL = strings.TrimSpace(cfg.CSP.APITokenURL)
	cfg.CSP.OAuthURL = strings.TrimSpace(cfg.CSP.OAuthURL)
	cfg.CSP.ProxyURL = strings.TrimSpace(cfg.CSP.ProxyURL)
	cfg.Alerts.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Alerts.BaseURL), "/")
	cfg.Alerts.TenantID = strings.TrimSpace(cfg.Alerts.TenantID)
	cfg.Alerts.CountPath = strings.TrimSpace(cfg.Alerts.CountPath)
	cfg.Alerts.APIToken = strings.TrimSpace(cfg.Alerts.APIToken)
	cfg.Alerts.OAuthAppID = strings.TrimSpace(cfg.Alerts.OAuthAppID)
	cfg.Alerts.OAuthAppSecret = strings.TrimSpace(cfg.Alerts.OAuthAppSecret)
	cfg.Alerts.OrgID = strings.TrimSpace(cfg.Alerts.OrgID)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config error: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_header_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.service_name", "csp2api")
	viper.SetDefault("log.env", "production")
	viper.SetDefault("log.caller", false)
	viper.SetDefault("log.output.to_stdout", true)
	viper.SetDefault("log.output.to_file", false)
	viper.SetDefault("log.output.file_path", "")
	viper.SetDefault("log.rotation.max_size_mb", 100)
	viper.SetDefault("log.rotation.max_backups", 10)
	viper.SetDefault("log.rotation.max_age_days", 7)
	viper.SetDefault("log.rotation.compress", true)

	// CSP
	viper.SetDefault("csp.api_token_url", csp.DefaultAPITokenURL)
	viper.SetDefault("csp.oauth_token_url", csp.DefaultOAuthURL)
	viper.SetDefault("csp.clock_skew_seconds", 60)
	viper.SetDefault("csp.retry_delay_seconds", 10)
	viper.SetDefault("csp.request_timeout_seconds", 30)
	viper.SetDefault("csp.proxy_url", "")

	// Alerts relay
	viper.SetDefault("alerts.enabled", false)
	viper.SetDefault("alerts.base_url", "")
	viper.SetDefault("alerts.tenant_id", "")
	viper.SetDefault("alerts.interval_minutes", 10)
	viper.SetDefault("alerts.count_path", "")

	viper.SetDefault("timezone", "")
}

// Validate 校验配置的合法性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if err := validateHTTPURL("csp.api_token_url", c.CSP.APITokenURL); err != nil {
		return err
	}
	if err := validateHTTPURL("csp.oauth_token_url", c.CSP.OAuthURL); err != nil {
		return err
	}
	if c.CSP.ClockSkewSeconds < 0 {
		return fmt.Errorf("csp.clock_skew_seconds must not be negative: %d", c.CSP.ClockSkewSeconds)
	}
	if c.CSP.RetryDelaySeconds <= 0 {
		return fmt.Errorf("csp.retry_delay_seconds must be positive: %d", c.CSP.RetryDelaySeconds)
	}
	if c.CSP.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("csp.request_timeout_seconds must be positive: %d", c.CSP.RequestTimeoutSeconds)
	}
	if c.Alerts.Enabled {
		if err := validateHTTPURL("alerts.base_url", c.Alerts.BaseURL); err != nil {
			return err
		}
		if c.Alerts.IntervalMinutes <= 0 {
			return fmt.Errorf("alerts.interval_minutes must be positive: %d", c.Alerts.IntervalMinutes)
		}
		if c.Alerts.APIToken == "" && c.Alerts.OAuthAppID == "" {
			return fmt.Errorf("alerts.enabled requires alerts.api_token or alerts.oauth_app_id")
		}
		if c.Alerts.OAuthAppID != "" && c.Alerts.OAuthAppSecret == "" {
			return fmt.Errorf("alerts.oauth_app_id set without alerts.oauth_app_secret")
		}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

func validateHTTPURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https, got %q", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s: missing host", name)
	}
	return nil
}

// Location returns the configured timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return time.Local
	}
	return loc
}
