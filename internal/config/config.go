package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DBPath string `yaml:"db_path"`

	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	GlossaryPath    string `yaml:"glossary_path"`

	WorkerCount            int `yaml:"worker_count"`
	MaxAttempts            int `yaml:"max_attempts"`
	RetryBaseDelayMS       int `yaml:"retry_base_delay_ms"`
	ClassifyTimeoutSeconds int `yaml:"classify_timeout_seconds"`
	RunDeadlineSeconds     int `yaml:"run_deadline_seconds"`

	// Per-million-token rates used for run cost accounting.
	InputCostPerMTok  float64 `yaml:"input_cost_per_mtok"`
	OutputCostPerMTok float64 `yaml:"output_cost_per_mtok"`

	SlackBotToken       string `yaml:"slack_bot_token"`
	NotifyChannelID     string `yaml:"notify_channel_id"`
	AutoAnalyzeSchedule string `yaml:"auto_analyze_schedule"`
}

// Load reads config from path (empty means CONFIG_PATH env var, falling
// back to ./config.yaml). A missing file is fine; env vars override YAML
// values and defaults fill the rest.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		path = "config.yaml"
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			path = envPath
		}
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
		log.Printf("Loaded config from %s", path)
	}

	// Env vars override YAML values
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.GlossaryPath, "GLOSSARY_PATH")
	if err := envOverrideInt(&cfg.WorkerCount, "WORKER_COUNT"); err != nil {
		return cfg, err
	}
	if err := envOverrideInt(&cfg.MaxAttempts, "MAX_ATTEMPTS"); err != nil {
		return cfg, err
	}
	if err := envOverrideInt(&cfg.RetryBaseDelayMS, "RETRY_BASE_DELAY_MS"); err != nil {
		return cfg, err
	}
	if err := envOverrideInt(&cfg.ClassifyTimeoutSeconds, "CLASSIFY_TIMEOUT_SECONDS"); err != nil {
		return cfg, err
	}
	if err := envOverrideInt(&cfg.RunDeadlineSeconds, "RUN_DEADLINE_SECONDS"); err != nil {
		return cfg, err
	}
	if err := envOverrideFloat(&cfg.InputCostPerMTok, "INPUT_COST_PER_MTOK"); err != nil {
		return cfg, err
	}
	if err := envOverrideFloat(&cfg.OutputCostPerMTok, "OUTPUT_COST_PER_MTOK"); err != nil {
		return cfg, err
	}
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.NotifyChannelID, "NOTIFY_CHANNEL_ID")
	envOverride(&cfg.AutoAnalyzeSchedule, "AUTO_ANALYZE_SCHEDULE")

	// Defaults
	if cfg.DBPath == "" {
		cfg.DBPath = "./triagebot.db"
	}
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "anthropic"
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 5
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelayMS == 0 {
		cfg.RetryBaseDelayMS = 500
	}
	if cfg.ClassifyTimeoutSeconds == 0 {
		cfg.ClassifyTimeoutSeconds = 60
	}
	if cfg.InputCostPerMTok == 0 {
		cfg.InputCostPerMTok = 0.25
	}
	if cfg.OutputCostPerMTok == 0 {
		cfg.OutputCostPerMTok = 2.0
	}

	// Validate
	if cfg.LLMProvider != "anthropic" && cfg.LLMProvider != "openai" {
		return cfg, fmt.Errorf("llm_provider must be 'anthropic' or 'openai', got '%s'", cfg.LLMProvider)
	}
	if cfg.WorkerCount < 1 {
		return cfg, fmt.Errorf("invalid worker_count '%d': must be >= 1", cfg.WorkerCount)
	}
	if cfg.MaxAttempts < 1 {
		return cfg, fmt.Errorf("invalid max_attempts '%d': must be >= 1", cfg.MaxAttempts)
	}
	if cfg.RetryBaseDelayMS < 0 {
		return cfg, fmt.Errorf("invalid retry_base_delay_ms '%d': must be >= 0", cfg.RetryBaseDelayMS)
	}
	if cfg.ClassifyTimeoutSeconds < 1 {
		return cfg, fmt.Errorf("invalid classify_timeout_seconds '%d': must be >= 1", cfg.ClassifyTimeoutSeconds)
	}
	if cfg.RunDeadlineSeconds < 0 {
		return cfg, fmt.Errorf("invalid run_deadline_seconds '%d': must be >= 0", cfg.RunDeadlineSeconds)
	}

	return cfg, nil
}

// RequireLLM checks that the configured provider has an API key. Only
// commands that actually call the classifier need this.
func (c Config) RequireLLM() error {
	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai_api_key is required when llm_provider=openai")
		}
	}
	return nil
}

func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

func (c Config) ClassifyTimeout() time.Duration {
	return time.Duration(c.ClassifyTimeoutSeconds) * time.Second
}

func (c Config) RunDeadline() time.Duration {
	return time.Duration(c.RunDeadlineSeconds) * time.Second
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideFloat(field *float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
