package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bryanweaver/mewscast-sub000/internal/logger"
	"github.com/bryanweaver/mewscast-sub000/internal/tracker"
)

// Config is everything the bot needs for one run: credentials from the
// environment, voice and dedup tuning from config.yaml.
type Config struct {
	// Gemini settings
	GeminiAPIKey      string
	Model             string
	MaxGeminiRequests int // maximum text generations per run (0 = unlimited)

	// X (Twitter) settings
	XAccessToken string // OAuth2 user-context token with tweet.write
	EnableX      bool

	// Bluesky settings
	BlueskyHost     string
	BlueskyHandle   string
	BlueskyPassword string
	EnableBluesky   bool

	// Voice
	AnchorName  string
	Style       string
	MaxLength   int
	AvoidTopics []string

	// News source
	Categories       []string
	PreferredSources []string
	MaxCandidates    int
	FetchDelay       time.Duration

	// Dedup engine
	HistoryFile string
	Dedup       tracker.Config

	// App settings
	Debug          bool
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
}

// fileConfig mirrors config.yaml.
type fileConfig struct {
	Content struct {
		Model      string   `yaml:"model"`
		AnchorName string   `yaml:"anchor_name"`
		Style      string   `yaml:"style"`
		MaxLength  int      `yaml:"max_length"`
		Topics     []string `yaml:"topics"`
	} `yaml:"content"`
	Safety struct {
		AvoidTopics []string `yaml:"avoid_topics"`
	} `yaml:"safety"`
	News struct {
		PreferredSources []string `yaml:"preferred_sources"`
		MaxCandidates    int      `yaml:"max_candidates"`
	} `yaml:"news"`
	Deduplication struct {
		Enabled                    *bool    `yaml:"enabled"`
		TopicCooldownHours         *int     `yaml:"topic_cooldown_hours"`
		TopicSimilarityThreshold   *float64 `yaml:"topic_similarity_threshold"`
		ContentCooldownHours       *int     `yaml:"content_cooldown_hours"`
		ContentSimilarityThreshold *float64 `yaml:"content_similarity_threshold"`
		SourceCooldownHours        *int     `yaml:"source_cooldown_hours"`
		URLDeduplication           *bool    `yaml:"url_deduplication"`
		MaxHistoryDays             *int     `yaml:"max_history_days"`
		AllowUpdates               *bool    `yaml:"allow_updates"`
		UpdateKeywords             []string `yaml:"update_keywords"`
	} `yaml:"deduplication"`
}

// Load builds the configuration from the environment plus config.yaml.
// A missing yaml file falls back to defaults with a warning; missing
// credentials surface in Validate, not here.
func Load() (*Config, error) {
	// Credentials live in .env during local runs; absent file is fine.
	_ = godotenv.Load()

	cfg := &Config{
		// Default values
		Model:          "gemini-1.5-flash",
		AnchorName:     "Walter Croncat",
		Style:          "dry, warm, lightly punning news anchor",
		MaxLength:      280,
		MaxCandidates:  5,
		FetchDelay:     500 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
		RetryAttempts:  3,
		RetryDelay:     5 * time.Second,
		Dedup:          tracker.DefaultConfig(),
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.XAccessToken = os.Getenv("X_ACCESS_TOKEN")
	cfg.BlueskyHandle = os.Getenv("BLUESKY_HANDLE")
	cfg.BlueskyPassword = os.Getenv("BLUESKY_PASSWORD")
	cfg.BlueskyHost = getEnvOrDefault("BLUESKY_HOST", "https://bsky.social")

	cfg.EnableX = cfg.XAccessToken != ""
	cfg.EnableBluesky = cfg.BlueskyHandle != "" && cfg.BlueskyPassword != ""

	cfg.HistoryFile = getEnvOrDefault("HISTORY_FILE", "posts_history.json")
	cfg.MaxGeminiRequests = getEnvIntOrDefault("MAX_GEMINI_REQUESTS", 3)

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}

	path := getEnvOrDefault("CONFIG_PATH", "config.yaml")
	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("config file not found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("could not read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("could not parse config file %s: %w", path, err)
	}

	if fc.Content.Model != "" {
		c.Model = fc.Content.Model
	}
	if fc.Content.AnchorName != "" {
		c.AnchorName = fc.Content.AnchorName
	}
	if fc.Content.Style != "" {
		c.Style = fc.Content.Style
	}
	if fc.Content.MaxLength > 0 {
		c.MaxLength = fc.Content.MaxLength
	}
	if len(fc.Content.Topics) > 0 {
		c.Categories = fc.Content.Topics
	}
	c.AvoidTopics = fc.Safety.AvoidTopics
	if len(fc.News.PreferredSources) > 0 {
		c.PreferredSources = fc.News.PreferredSources
	}
	if fc.News.MaxCandidates > 0 {
		c.MaxCandidates = fc.News.MaxCandidates
	}

	d := fc.Deduplication
	if d.Enabled != nil {
		c.Dedup.Enabled = *d.Enabled
	}
	if d.TopicCooldownHours != nil {
		c.Dedup.TopicCooldownHours = *d.TopicCooldownHours
	}
	if d.TopicSimilarityThreshold != nil {
		c.Dedup.TopicSimilarityThreshold = *d.TopicSimilarityThreshold
	}
	if d.ContentCooldownHours != nil {
		c.Dedup.ContentCooldownHours = *d.ContentCooldownHours
	}
	if d.ContentSimilarityThreshold != nil {
		c.Dedup.ContentSimilarityThreshold = *d.ContentSimilarityThreshold
	}
	if d.SourceCooldownHours != nil {
		c.Dedup.SourceCooldownHours = *d.SourceCooldownHours
	}
	if d.URLDeduplication != nil {
		c.Dedup.URLDeduplication = *d.URLDeduplication
	}
	if d.MaxHistoryDays != nil {
		c.Dedup.MaxHistoryDays = *d.MaxHistoryDays
	}
	if d.AllowUpdates != nil {
		c.Dedup.AllowUpdates = *d.AllowUpdates
	}
	if len(d.UpdateKeywords) > 0 {
		c.Dedup.UpdateKeywords = d.UpdateKeywords
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Validate checks the credentials a posting run needs. Dry runs only need
// the Gemini key.
func (c *Config) Validate(posting bool) error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if !posting {
		return nil
	}
	if !c.EnableX && !c.EnableBluesky {
		return fmt.Errorf("no posting platform configured: set X_ACCESS_TOKEN and/or BLUESKY_HANDLE + BLUESKY_PASSWORD")
	}
	return nil
}
