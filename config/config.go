package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tommyz7/airbnb-analytics/models"
	"github.com/tommyz7/airbnb-analytics/storage"
)

type Config struct {
	Airbnb    AirbnbConfig
	Postgres  PostgresConfig
	Scheduler SchedulerConfig
	Sweep     SweepConfig
	Detail    DetailConfig
	Thumbnail ThumbnailConfig
	S3        storage.S3Config
	DBPath    string
	LogDir    string
	Locations []LocationSeed
}

type AirbnbConfig struct {
	APIKey   string
	Username string
	Password string
	BaseURL  string // override for testing against a stub
}

type PostgresConfig struct {
	URL string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type SweepConfig struct {
	Timeout  time.Duration
	Locale   string
	Currency string
	PageSize int
	MaxPages int
}

type DetailConfig struct {
	Enabled    bool
	Interval   time.Duration
	BatchSize  int
	StaleAfter time.Duration
}

type ThumbnailConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

// LocationSeed is one operator-configured location from
// config/locations/*.yaml, upserted into tracked_locations at startup.
type LocationSeed struct {
	Name        string `yaml:"name"`
	Locale      string `yaml:"locale"`
	Currency    string `yaml:"currency"`
	PriceMin    *int   `yaml:"price_min"`
	PriceMax    *int   `yaml:"price_max"`
	MinBedrooms *int   `yaml:"min_bedrooms"`
	Active      *bool  `yaml:"active"`
}

// TrackedLocation converts a seed into a row ready to upsert. Every
// call generates a fresh id; the name-keyed upsert keeps the stored id
// stable for locations that already exist.
func (s LocationSeed) TrackedLocation() *models.TrackedLocation {
	active := true
	if s.Active != nil {
		active = *s.Active
	}
	now := time.Now()
	return &models.TrackedLocation{
		ID:          uuid.New(),
		Name:        s.Name,
		Locale:      s.Locale,
		Currency:    s.Currency,
		PriceMin:    s.PriceMin,
		PriceMax:    s.PriceMax,
		MinBedrooms: s.MinBedrooms,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Airbnb: AirbnbConfig{
			APIKey:   os.Getenv("AIRBNB_API_KEY"),
			Username: os.Getenv("AIRBNB_USERNAME"),
			Password: os.Getenv("AIRBNB_PASSWORD"),
			BaseURL:  os.Getenv("AIRBNB_BASE_URL"),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SWEEP_CRON"),
		},
		Sweep: SweepConfig{
			Timeout:  getEnvDuration("SWEEP_TIMEOUT", 30*time.Minute),
			Locale:   getEnv("SWEEP_LOCALE", "en"),
			Currency: getEnv("SWEEP_CURRENCY", "USD"),
			PageSize: getEnvInt("SWEEP_PAGE_SIZE", 50),
			MaxPages: getEnvInt("SWEEP_MAX_PAGES", 20),
		},
		Detail: DetailConfig{
			Enabled:    os.Getenv("DETAIL_DISABLED") != "true",
			Interval:   getEnvDuration("DETAIL_INTERVAL", 10*time.Minute),
			BatchSize:  getEnvInt("DETAIL_BATCH_SIZE", 20),
			StaleAfter: getEnvDuration("DETAIL_STALE_AFTER", 7*24*time.Hour),
		},
		Thumbnail: ThumbnailConfig{
			Enabled:   os.Getenv("THUMBNAIL_DISABLED") != "true",
			Interval:  getEnvDuration("THUMBNAIL_INTERVAL", 15*time.Minute),
			BatchSize: getEnvInt("THUMBNAIL_BATCH_SIZE", 25),
		},
		S3: storage.S3Config{
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          os.Getenv("S3_BUCKET"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DBPath: getEnv("DB_PATH", "analytics.db"),
		LogDir: getEnv("LOG_DIR", "logs"),
	}

	if interval := os.Getenv("SWEEP_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL %q: %w", interval, err)
		}
		cfg.Scheduler.Interval = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := cfg.loadLocationSeeds("config/locations"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Startup fails fast on missing credentials rather than surfacing
// auth errors on the first sweep.
func (c *Config) validate() error {
	required := map[string]string{
		"AIRBNB_API_KEY":  c.Airbnb.APIKey,
		"AIRBNB_USERNAME": c.Airbnb.Username,
		"AIRBNB_PASSWORD": c.Airbnb.Password,
		"DATABASE_URL":    c.Postgres.URL,
	}
	for name, val := range required {
		if val == "" {
			return fmt.Errorf("missing required environment variable %s", name)
		}
	}
	return nil
}

func (c *Config) loadLocationSeeds(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}

		var seeds []LocationSeed
		if err := yaml.Unmarshal(data, &seeds); err != nil {
			return fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
		for _, seed := range seeds {
			if seed.Name == "" {
				return fmt.Errorf("%s: location seed with empty name", entry.Name())
			}
			c.Locations = append(c.Locations, seed)
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
