package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/hub2lab/internal/logger"
)

// Config holds the application's configuration values.
type Config struct {
	Server      ServerConfig  `mapstructure:"server"`
	Logging     logger.Config `mapstructure:"logging"`
	GitHub      GitHubConfig  `mapstructure:"github"`
	GitLab      GitLabConfig  `mapstructure:"gitlab"`
	Rules       RulesConfig   `mapstructure:"rules"`
	Tasks       TasksConfig   `mapstructure:"tasks"`
	FailfastURL string        `mapstructure:"failfast_url"`
}

// ServerConfig configures the HTTP listener and the worker pool.
type ServerConfig struct {
	Port       string `mapstructure:"port"`
	MaxWorkers int    `mapstructure:"max_workers"`
	QueueSize  int    `mapstructure:"queue_size"`
	// RateLimit is the number of webhook deliveries accepted per minute and
	// installation; zero disables limiting.
	RateLimit int `mapstructure:"rate_limit"`
	RateBurst int `mapstructure:"rate_burst"`
	// ShutdownTimeout bounds how long in-flight webhook requests may take
	// once shutdown starts.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GitHubConfig holds the GitHub App credentials.
type GitHubConfig struct {
	AppID          int64         `mapstructure:"app_id"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	PrivateKey     string        `mapstructure:"private_key"` // base64 PEM, wins over the path
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	Context        string        `mapstructure:"context"`
	BaseURL        string        `mapstructure:"base_url"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
}

// GitLabConfig holds the CI host settings.
type GitLabConfig struct {
	URL           string        `mapstructure:"url"`
	Token         string        `mapstructure:"token"`
	Namespace     string        `mapstructure:"namespace"`
	RobotUser     string        `mapstructure:"robot_user"`
	RobotEmail    string        `mapstructure:"robot_email"`
	Timeout       time.Duration `mapstructure:"timeout"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Visibility    string        `mapstructure:"visibility"`
	SharedRunners bool          `mapstructure:"shared_runners"`
	EnableLinter  bool          `mapstructure:"enable_linter"`
}

// RulesConfig decides which GitHub events start a pipeline.
type RulesConfig struct {
	OnBranches       []string            `mapstructure:"on_branches"`
	OnPullRequests   bool                `mapstructure:"on_pull_requests"`
	OnLabels         []string            `mapstructure:"on_labels"`
	ExclusiveLabels  map[string][]string `mapstructure:"exclusive_labels"`
	OnComments       []string            `mapstructure:"on_comments"`
	AuthorizedUsers  []string            `mapstructure:"authorized_users"`
	AuthorizedGroups []string            `mapstructure:"authorized_groups"`
	RequiredLabels   [][]string          `mapstructure:"required_labels"`
}

// RetryConfig is a capped exponential backoff.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// PollConfig spaces the attempts of a poll task. Polls share the attempt
// ceiling of Retry.
type PollConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// TasksConfig holds the retry policies of the task layer.
type TasksConfig struct {
	Retry RetryConfig `mapstructure:"retry"`
	Poll  PollConfig  `mapstructure:"poll"`
}

// LoadConfig reads configuration from an optional config.yaml, a .env file and
// environment variables prefixed with HUB2LAB_, applies defaults and validates
// required fields.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/hub2lab")
	v.SetEnvPrefix("HUB2LAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := loadDotEnv(".env"); err != nil {
		slog.Error("failed to read .env file", "error", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv exports the variables of an env file that are not already set in
// the process environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return err
	}
	for _, key := range env.AllKeys() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, env.GetString(key)); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.max_workers", 5)
	v.SetDefault("server.queue_size", 100)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	// Keys without a meaningful default are registered so AutomaticEnv can
	// resolve them during Unmarshal.
	v.SetDefault("github.app_id", 0)
	v.SetDefault("github.private_key", "")
	v.SetDefault("github.webhook_secret", "")
	v.SetDefault("github.base_url", "")
	v.SetDefault("gitlab.token", "")
	v.SetDefault("gitlab.webhook_secret", "")
	v.SetDefault("rules.authorized_users", []string{})
	v.SetDefault("github.context", "ffci")
	v.SetDefault("github.private_key_path", "keys/hub2lab.private-key.pem")
	v.SetDefault("github.token_ttl", 50*time.Minute)
	v.SetDefault("gitlab.url", "https://gitlab.com")
	v.SetDefault("gitlab.namespace", "ffci")
	v.SetDefault("gitlab.robot_user", "ffci-bot")
	v.SetDefault("gitlab.robot_email", "ffci-bot@users.noreply.gitlab.com")
	v.SetDefault("gitlab.timeout", 30*time.Second)
	v.SetDefault("gitlab.visibility", "private")
	v.SetDefault("gitlab.shared_runners", true)
	v.SetDefault("gitlab.enable_linter", false)
	v.SetDefault("rules.on_branches", []string{"main", "master"})
	v.SetDefault("rules.on_pull_requests", true)
	v.SetDefault("rules.on_labels", []string{"ok-to-test"})
	v.SetDefault("rules.on_comments", []string{"/retest"})
	v.SetDefault("rules.authorized_groups", []string{"OWNER", "MEMBER", "COLLABORATOR"})
	v.SetDefault("tasks.retry.max_attempts", 10)
	v.SetDefault("tasks.retry.initial_interval", 2*time.Second)
	v.SetDefault("tasks.retry.max_interval", time.Minute)
	v.SetDefault("tasks.poll.initial_interval", 30*time.Second)
	v.SetDefault("tasks.poll.max_interval", 5*time.Minute)
	v.SetDefault("failfast_url", "http://localhost:8080")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	// Lists coming from the environment arrive as a single space separated string.
	cfg.Rules.OnBranches = v.GetStringSlice("rules.on_branches")
	cfg.Rules.OnLabels = v.GetStringSlice("rules.on_labels")
	cfg.Rules.OnComments = v.GetStringSlice("rules.on_comments")
	cfg.Rules.AuthorizedUsers = v.GetStringSlice("rules.authorized_users")
	cfg.Rules.AuthorizedGroups = v.GetStringSlice("rules.authorized_groups")
	cfg.GitHub.Context = strings.TrimSuffix(cfg.GitHub.Context, "/")
	cfg.FailfastURL = strings.TrimSuffix(cfg.FailfastURL, "/")
	return &cfg, nil
}

// Validate checks the fields the service cannot run without.
func (c *Config) Validate() error {
	if c.GitHub.AppID == 0 {
		return fmt.Errorf("github.app_id must be set")
	}
	if c.GitHub.PrivateKey == "" && c.GitHub.PrivateKeyPath == "" {
		return fmt.Errorf("github.private_key or github.private_key_path must be set")
	}
	if c.GitLab.Token == "" {
		return fmt.Errorf("gitlab.token must be set")
	}
	if c.GitLab.URL == "" {
		return fmt.Errorf("gitlab.url must be set")
	}
	if c.Tasks.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("tasks.retry.max_attempts must be positive")
	}
	switch c.GitLab.Visibility {
	case "private", "internal", "public":
	default:
		return fmt.Errorf("gitlab.visibility must be private, internal or public, got %q", c.GitLab.Visibility)
	}
	return nil
}

// AppPrivateKey returns the PEM encoded GitHub App key, decoding the inline
// base64 value when present and reading the key file otherwise.
func (c *Config) AppPrivateKey() ([]byte, error) {
	if c.GitHub.PrivateKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.GitHub.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decode github.private_key: %w", err)
		}
		return key, nil
	}
	key, err := os.ReadFile(c.GitHub.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key from %s: %w", c.GitHub.PrivateKeyPath, err)
	}
	return key, nil
}
