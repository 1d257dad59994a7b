package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port                   string `env:"PORT" envDefault:"8080"`
	DBUser                 string `env:"DB_USER,required"`
	DBPassword             string `env:"DB_PASSWORD,required"`
	DBHost                 string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME,required"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`
	AutoMigrate            bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	GitSHA   string `env:"GIT_SHA" envDefault:"dev"`
	BuildAt  string `env:"BUILD_TIME"`

	FirebaseProjectID   string   `env:"FIREBASE_PROJECT_ID"`
	CredentialsFile     string   `env:"GOOGLE_APPLICATION_CREDENTIALS_FILE"`
	CORSAllowedSuffixes []string `env:"CORS_ALLOWED_SUFFIXES" envSeparator:"," envDefault:"vercel.app"`

	GeminiAPIKey       string        `env:"GEMINI_API_KEY"`
	GeminiModel        string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	ValuationDefault   float64       `env:"VALUATION_DEFAULT" envDefault:"50"`
	ValuationTimeout   time.Duration `env:"VALUATION_TIMEOUT" envDefault:"20s"`
	ValuationCacheSize int           `env:"VALUATION_CACHE_SIZE" envDefault:"256"`
	ImageMaxBytes      int64         `env:"IMAGE_MAX_BYTES" envDefault:"8388608"`

	// Half-width of the candidate value band, in percent of the reference value.
	CandidateBandPercent float64 `env:"CANDIDATE_BAND_PERCENT" envDefault:"10"`
	// Zero keeps declined pairs declined forever.
	MatchRematchCooldown time.Duration `env:"MATCH_REMATCH_COOLDOWN" envDefault:"0s"`

	NotifyOnBidPlaced    bool          `env:"NOTIFY_ON_BID_PLACED" envDefault:"true"`
	NotifyOnMatchCreated bool          `env:"NOTIFY_ON_MATCH_CREATED" envDefault:"false"`
	NotifyRetryAttempts  int           `env:"NOTIFY_RETRY_ATTEMPTS" envDefault:"3"`
	NotifyRetryBackoff   time.Duration `env:"NOTIFY_RETRY_BACKOFF" envDefault:"100ms"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.CandidateBandPercent <= 0 || c.CandidateBandPercent > 100 {
		return fmt.Errorf("CANDIDATE_BAND_PERCENT must be in (0,100], got %v", c.CandidateBandPercent)
	}
	if c.ValuationDefault < 0 {
		return fmt.Errorf("VALUATION_DEFAULT must not be negative, got %v", c.ValuationDefault)
	}
	if c.ValuationCacheSize <= 0 {
		return fmt.Errorf("VALUATION_CACHE_SIZE must be positive, got %d", c.ValuationCacheSize)
	}
	if c.NotifyRetryAttempts < 1 {
		return fmt.Errorf("NOTIFY_RETRY_ATTEMPTS must be at least 1, got %d", c.NotifyRetryAttempts)
	}
	if c.MatchRematchCooldown < 0 {
		return fmt.Errorf("MATCH_REMATCH_COOLDOWN must not be negative, got %s", c.MatchRematchCooldown)
	}
	return nil
}
