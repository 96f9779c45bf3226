package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Governor  GovernorConfig  `yaml:"governor"`
	Identity  IdentityConfig  `yaml:"identity"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Logging   LoggingConfig   `yaml:"logging"`
	Timezone  string          `yaml:"timezone"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"` // mysql or postgres
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
}

// CrawlerConfig contains remote-marketplace crawl settings
type CrawlerConfig struct {
	Tier             string  `yaml:"tier"` // A (conservative) / B / C (full scale)
	APIBaseURL       string  `yaml:"api_base_url"`
	APIKey           string  `yaml:"api_key"`
	Currency         string  `yaml:"currency"`
	DefaultGuests    int     `yaml:"default_guests"`
	SearchRadiusKM   float64 `yaml:"search_radius_km"`
	LookaheadDays    int     `yaml:"lookahead_days"`
	TimeoutSeconds   int     `yaml:"timeout_seconds"`
	TargetPriorities []int   `yaml:"target_priorities"`
	StationsFile     string  `yaml:"stations_file"`
	StaleAfterDays   int     `yaml:"stale_after_days"`
}

// GovernorConfig contains per-host pacing and backoff settings
type GovernorConfig struct {
	DelayLowSeconds        float64 `yaml:"delay_low_seconds"`
	DelayHighSeconds       float64 `yaml:"delay_high_seconds"`
	JitterSeconds          float64 `yaml:"jitter_seconds"`
	MaxBackoffMultiplier   float64 `yaml:"max_backoff_multiplier"`
	DecayFactor            float64 `yaml:"decay_factor"`
	SuspendAfterSoftBlocks int     `yaml:"suspend_after_soft_blocks"`
	SuspendAfterHardErrors int     `yaml:"suspend_after_hard_errors"`
	CooldownMinutes        int     `yaml:"cooldown_minutes"`
	MaxRequestsPerHour     int     `yaml:"max_requests_per_hour"`
	DailyLimit             int     `yaml:"daily_limit"`
}

// IdentityConfig contains identity rotation settings
type IdentityConfig struct {
	RotateMinutes        int      `yaml:"rotate_minutes"`
	UserAgents           []string `yaml:"user_agents"`
	ProxyFile            string   `yaml:"proxy_file"`
	ProxyList            []string `yaml:"proxy_list"`
	ProxyCooldownMinutes int      `yaml:"proxy_cooldown_minutes"`
}

// SchedulerConfig contains sweep cadence and dispatch settings
type SchedulerConfig struct {
	SearchIntervalMinutes int    `yaml:"search_interval_minutes"`
	CalendarRunTime       string `yaml:"calendar_run_time"` // HH:MM
	DetailRunDay          string `yaml:"detail_run_day"`    // cron day-of-week, e.g. MON
	DetailRunTime         string `yaml:"detail_run_time"`   // HH:MM
	MaxConcurrency        int    `yaml:"max_concurrency"`
	FetchTimeoutSeconds   int    `yaml:"fetch_timeout_seconds"`
	ReconcileWorkers      int    `yaml:"reconcile_workers"`
}

// ReconcileConfig tunes the booking-inference confidence model. The flip
// weighting is a policy, not a constant: a flip observed close to the stay
// date scores near MaxFlipConfidence, one LeadTimeHorizonDays or more out
// floors at MinFlipConfidence.
type ReconcileConfig struct {
	LeadTimeHorizonDays    int     `yaml:"lead_time_horizon_days"`
	MinFlipConfidence      float64 `yaml:"min_flip_confidence"`
	MaxFlipConfidence      float64 `yaml:"max_flip_confidence"`
	CorroborationStep      float64 `yaml:"corroboration_step"`
	BaselineConfidence     float64 `yaml:"baseline_confidence"`
	FirstBlockedConfidence float64 `yaml:"first_blocked_confidence"`
	CancellationConfidence float64 `yaml:"cancellation_confidence"`
	MaxGapHours            int     `yaml:"max_gap_hours"`
	GapConfidenceCeiling   float64 `yaml:"gap_confidence_ceiling"`
	ConfidenceCap          float64 `yaml:"confidence_cap"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level        string `yaml:"level"`
	LogRequests  bool   `yaml:"log_requests"`
	LogResponses bool   `yaml:"log_responses"`
}

// DefaultConfig returns default configuration (tier A: conservative pacing,
// priority-1 targets only, no proxies required)
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Type: "mysql"},
		Crawler: CrawlerConfig{
			Tier:             "A",
			APIBaseURL:       "https://www.airbnb.co.kr",
			Currency:         "KRW",
			DefaultGuests:    2,
			SearchRadiusKM:   3.0,
			LookaheadDays:    90,
			TimeoutSeconds:   30,
			TargetPriorities: []int{1},
			StationsFile:     "config/stations.json",
			StaleAfterDays:   7,
		},
		Governor: GovernorConfig{
			DelayLowSeconds:        7,
			DelayHighSeconds:       12,
			JitterSeconds:          3,
			MaxBackoffMultiplier:   10,
			DecayFactor:            0.9,
			SuspendAfterSoftBlocks: 3,
			SuspendAfterHardErrors: 5,
			CooldownMinutes:        30,
			MaxRequestsPerHour:     500,
			DailyLimit:             8000,
		},
		Identity: IdentityConfig{
			RotateMinutes:        30,
			ProxyCooldownMinutes: 5,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:123.0) Gecko/20100101 Firefox/123.0",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3.1 Safari/605.1.15",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			},
		},
		Scheduler: SchedulerConfig{
			SearchIntervalMinutes: 60,
			CalendarRunTime:       "03:00",
			DetailRunDay:          "MON",
			DetailRunTime:         "05:00",
			MaxConcurrency:        1,
			FetchTimeoutSeconds:   30,
			ReconcileWorkers:      4,
		},
		Reconcile: ReconcileConfig{
			LeadTimeHorizonDays:    60,
			MinFlipConfidence:      0.50,
			MaxFlipConfidence:      0.95,
			CorroborationStep:      0.05,
			BaselineConfidence:     0.50,
			FirstBlockedConfidence: 0.60,
			CancellationConfidence: 0.30,
			MaxGapHours:            72,
			GapConfidenceCeiling:   0.75,
			ConfidenceCap:          0.99,
		},
		Logging: LoggingConfig{
			Level:       "info",
			LogRequests: true,
		},
		Timezone: "Asia/Seoul",
	}
}

// LoadConfig loads configuration from a YAML file, applies the tier preset
// and then environment overrides for deployment secrets.
func LoadConfig(filepath string) (*Config, error) {
	// .env is optional; system env vars still apply without it
	_ = godotenv.Load()

	config := DefaultConfig()

	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		config.applyTier()
		config.applyEnv()
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyTier()
	config.applyEnv()
	return config, nil
}

// applyTier adjusts pacing and scope from the crawl tier. Tier A crawls
// priority-1 targets slowly without proxies; B widens to priority 2 with
// moderate pacing; C covers everything with the shortest delays.
func (c *Config) applyTier() {
	switch c.Crawler.Tier {
	case "B":
		c.Crawler.TargetPriorities = []int{1, 2}
		c.Governor.DelayLowSeconds = 5
		c.Governor.DelayHighSeconds = 9
		c.Governor.MaxRequestsPerHour = 80
		c.Governor.DailyLimit = 600
		c.Scheduler.MaxConcurrency = 2
	case "C":
		c.Crawler.TargetPriorities = []int{1, 2, 3}
		c.Governor.DelayLowSeconds = 4
		c.Governor.DelayHighSeconds = 7
		c.Governor.MaxRequestsPerHour = 100
		c.Governor.DailyLimit = 500
		c.Scheduler.MaxConcurrency = 3
	}
}

// applyEnv lets deployment secrets override file values
func (c *Config) applyEnv() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.MySQL.Host = v
		c.Database.Postgres.Host = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.MySQL.Password = v
		c.Database.Postgres.Password = v
	}
	if v := os.Getenv("MARKET_API_KEY"); v != "" {
		c.Crawler.APIKey = v
	}
	if v := os.Getenv("MEILISEARCH_KEY"); v != "" {
		c.Search.Meilisearch.APIKey = v
	}
	if v := os.Getenv("CRAWL_TIER"); v != "" {
		c.Crawler.Tier = v
		c.applyTier()
	}
}

// GetTimeout returns the fetch timeout as a duration
func (c *CrawlerConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DelayRange returns the governor's base delay band
func (c *GovernorConfig) DelayRange() (time.Duration, time.Duration) {
	low := time.Duration(c.DelayLowSeconds * float64(time.Second))
	high := time.Duration(c.DelayHighSeconds * float64(time.Second))
	return low, high
}

// GetJitter returns the additive jitter bound
func (c *GovernorConfig) GetJitter() time.Duration {
	return time.Duration(c.JitterSeconds * float64(time.Second))
}

// GetCooldown returns the suspension window
func (c *GovernorConfig) GetCooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

// GetRotateInterval returns the identity rotation period
func (c *IdentityConfig) GetRotateInterval() time.Duration {
	return time.Duration(c.RotateMinutes) * time.Minute
}

// GetProxyCooldown returns the per-proxy cooldown after a block
func (c *IdentityConfig) GetProxyCooldown() time.Duration {
	return time.Duration(c.ProxyCooldownMinutes) * time.Minute
}

// GetFetchTimeout returns the hard timeout for one fetch
func (c *SchedulerConfig) GetFetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// GetMaxGap returns the observation gap beyond which confidence is capped
func (c *ReconcileConfig) GetMaxGap() time.Duration {
	return time.Duration(c.MaxGapHours) * time.Hour
}
