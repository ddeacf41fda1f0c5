package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"marketbot/pkg/domain"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML with environment
// variable overrides for secrets.
type FileConfig struct {
	TelegramToken string `yaml:"telegramToken"`
	LogLevel      string `yaml:"logLevel"`

	DatabasePath    string `yaml:"databasePath"`
	DocumentStorage string `yaml:"documentStorage"`
	VectorStorage   string `yaml:"vectorStorage"`

	OpenAIAPIKey    string  `yaml:"openAIAPIKey"`
	OpenAIBaseURL   string  `yaml:"openAIBaseURL"`
	GenerationModel string  `yaml:"generationModel"`
	EmbeddingModel  string  `yaml:"embeddingModel"`
	MaxTokens       int     `yaml:"maxTokens"`
	Temperature     float64 `yaml:"temperature"`

	UseVectorSearch     bool    `yaml:"useVectorSearch"`
	SimilarityThreshold float64 `yaml:"similarityThreshold"`

	FreeLimit     int `yaml:"freeLimit"`
	PremiumLimit  int `yaml:"premiumLimit"`
	FallbackLimit int `yaml:"fallbackLimit"`

	YookassaShopID    string  `yaml:"yookassaShopID"`
	YookassaSecretKey string  `yaml:"yookassaSecretKey"`
	PaymentReturnURL  string  `yaml:"paymentReturnURL"`
	PremiumPrice      float64 `yaml:"premiumPrice"`

	AdminIDs []int64 `yaml:"adminIDs"`

	CleanupDays int `yaml:"cleanupDays"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := defaults()
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func defaults() FileConfig {
	return FileConfig{
		LogLevel:            "info",
		DatabasePath:        "bot_database.db",
		DocumentStorage:     "knowledge_base_files",
		VectorStorage:       "vector_storage",
		OpenAIBaseURL:       "https://api.openai.com/v1",
		GenerationModel:     "gpt-4o",
		EmbeddingModel:      "text-embedding-3-small",
		MaxTokens:           3000,
		Temperature:         0.7,
		UseVectorSearch:     true,
		SimilarityThreshold: 0.7,
		FreeLimit:           5,
		PremiumLimit:        500,
		FallbackLimit:       50,
		PaymentReturnURL:    "https://t.me",
		PremiumPrice:        499,
		CleanupDays:         90,
	}
}

// Environment variables override file values so secrets can stay out of the
// config file.
func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.TelegramToken = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := os.Getenv("YOOKASSA_SHOP_ID"); v != "" {
		cfg.YookassaShopID = v
	}
	if v := os.Getenv("YOOKASSA_SECRET_KEY"); v != "" {
		cfg.YookassaSecretKey = v
	}
	if v := os.Getenv("USE_VECTOR_SEARCH"); v != "" {
		cfg.UseVectorSearch = parseBool(v)
	}
	if v := os.Getenv("ADMIN_IDS"); v != "" {
		cfg.AdminIDs = parseAdminIDs(v)
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "1", "t":
		return true
	}
	return false
}

func parseAdminIDs(v string) []int64 {
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func validateConfig(cfg FileConfig) error {
	if cfg.TelegramToken == "" {
		return errors.New("config: telegramToken is required (set in config.yaml or TELEGRAM_TOKEN)")
	}
	if cfg.OpenAIAPIKey == "" {
		return errors.New("config: openAIAPIKey is required (set in config.yaml or OPENAI_API_KEY)")
	}
	if cfg.DatabasePath == "" {
		return errors.New("config: databasePath is required")
	}
	if cfg.GenerationModel == "" {
		return errors.New("config: generationModel is required")
	}
	if cfg.FreeLimit <= 0 || cfg.PremiumLimit <= 0 || cfg.FallbackLimit <= 0 {
		return errors.New("config: message limits must be positive")
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return errors.New("config: similarityThreshold must be within [0, 1]")
	}
	return nil
}

// TierLimits maps subscription tiers to their default message quotas.
func (c FileConfig) TierLimits() map[domain.SubscriptionStatus]int {
	return map[domain.SubscriptionStatus]int{
		domain.SubscriptionFree:    c.FreeLimit,
		domain.SubscriptionPremium: c.PremiumLimit,
	}
}

// CleanupAge converts the cleanup day count to a duration.
func (c FileConfig) CleanupAge() time.Duration {
	return time.Duration(c.CleanupDays) * 24 * time.Hour
}

// IsAdmin reports whether id is in the configured admin list.
func (c FileConfig) IsAdmin(id int64) bool {
	for _, admin := range c.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}
