// Root configuration for the harness. Loaded once in the root command and
// passed down explicitly; nothing in this package is a process-wide singleton.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure for the entire harness.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	App       AppConfig       `mapstructure:"app"`
	AuthCache AuthCacheConfig `mapstructure:"authcache"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Network   NetworkConfig   `mapstructure:"network"`
	Mailbox   MailboxConfig   `mapstructure:"mailbox"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Harness   HarnessConfig   `mapstructure:"harness"`
	CI        CIConfig        `mapstructure:"ci"`
}

// ColorConfig defines console color settings for log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" json:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" json:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" json:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" json:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// AppConfig describes the target application and its login form.
type AppConfig struct {
	// BaseURL is the application origin, e.g. "https://app.caretlegal.test".
	BaseURL   string `mapstructure:"base_url"`
	LoginPath string `mapstructure:"login_path"`

	// BearerCookie is the name of the cookie carrying the API bearer token
	// after a successful login.
	BearerCookie string `mapstructure:"bearer_cookie"`

	// Login form selectors. Overridable because the vendor reskins the login
	// page between releases.
	IdentityField    string `mapstructure:"identity_field"`
	SecretField      string `mapstructure:"secret_field"`
	SubmitButton     string `mapstructure:"submit_button"`
	SuccessIndicator string `mapstructure:"success_indicator"`
	FailureIndicator string `mapstructure:"failure_indicator"`

	DefaultIdentity string `mapstructure:"default_identity"`
	DefaultSecret   string `mapstructure:"default_secret"`
}

// AuthCacheConfig gates session reuse. Two windows exist on purpose: the
// freshness window is enforced by the cache, while the TTL hint is only
// recorded on sessions. The upstream token lifetime is not documented, so both
// values stay configurable instead of guessing a single source of truth.
type AuthCacheConfig struct {
	Dir             string        `mapstructure:"dir"`
	FreshnessWindow time.Duration `mapstructure:"freshness_window"`
	TokenTTLHint    time.Duration `mapstructure:"token_ttl_hint"`
}

// BrowserConfig holds settings for the headless browser used during login.
type BrowserConfig struct {
	Headless        bool          `mapstructure:"headless"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors"`
	LoginTimeout    time.Duration `mapstructure:"login_timeout"`
	Args            []string      `mapstructure:"args"`
}

// NetworkConfig holds settings for direct API requests.
type NetworkConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors"`
	ProxyURL        string        `mapstructure:"proxy_url"`
	CaptureBodies   bool          `mapstructure:"capture_bodies"`
}

// MailboxConfig holds Nylas API settings for inbox verification.
type MailboxConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	GrantID      string        `mapstructure:"grant_id"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// DatabaseConfig holds settings for the optional results store.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// HarnessConfig holds settings for the scenario runner.
type HarnessConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	QueueSize       int           `mapstructure:"queue_size"`
	ScenarioTimeout time.Duration `mapstructure:"scenario_timeout"`
}

// CIConfig controls timeout scaling on CI machines.
type CIConfig struct {
	// Multiplier is applied to browser and polling timeouts when a CI
	// environment is detected (or ForceCI is set).
	Multiplier float64 `mapstructure:"multiplier"`
	ForceCI    bool    `mapstructure:"force"`
}

// ciEnvFlags are the environment variables that mark a CI machine.
var ciEnvFlags = []string{"CI", "GITHUB_ACTIONS", "JENKINS_URL", "TEAMCITY_VERSION"}

// TimeoutScale returns the multiplier to apply to interactive timeouts.
func (c CIConfig) TimeoutScale() float64 {
	if c.Multiplier <= 0 {
		return 1
	}
	if c.ForceCI {
		return c.Multiplier
	}
	for _, name := range ciEnvFlags {
		if os.Getenv(name) != "" {
			return c.Multiplier
		}
	}
	return 1
}

// SetDefaults registers default values so the harness can run with a minimal
// config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "caretqa")

	v.SetDefault("app.login_path", "/login")
	v.SetDefault("app.bearer_cookie", "Token")
	v.SetDefault("app.identity_field", "#email")
	v.SetDefault("app.secret_field", "#password")
	v.SetDefault("app.submit_button", "button[type=submit]")
	v.SetDefault("app.success_indicator", "#dashboard")
	v.SetDefault("app.failure_indicator", ".login-error")

	v.SetDefault("authcache.dir", ".auth-cache")
	v.SetDefault("authcache.freshness_window", 45*time.Minute)
	v.SetDefault("authcache.token_ttl_hint", 60*time.Minute)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.login_timeout", 60*time.Second)

	v.SetDefault("network.timeout", 30*time.Second)

	v.SetDefault("mailbox.base_url", "https://api.us.nylas.com")
	v.SetDefault("mailbox.poll_interval", 5*time.Second)

	v.SetDefault("harness.concurrency", 2)
	v.SetDefault("harness.queue_size", 32)
	v.SetDefault("harness.scenario_timeout", 5*time.Minute)

	v.SetDefault("ci.multiplier", 2.0)
}

// Load unmarshals the viper state into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the harness cannot run without.
func (c *Config) Validate() error {
	if c.App.BaseURL == "" {
		return fmt.Errorf("app.base_url is a required configuration field")
	}
	if c.AuthCache.FreshnessWindow <= 0 {
		return fmt.Errorf("authcache.freshness_window must be a positive duration")
	}
	if c.Harness.Concurrency <= 0 {
		return fmt.Errorf("harness.concurrency must be a positive integer")
	}
	return nil
}
