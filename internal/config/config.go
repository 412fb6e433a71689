package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type SessionConfig struct {
	Secret string
	// GeneratedSecret is set when no secret was configured and one was made up
	// for this process; tokens will not survive a restart.
	GeneratedSecret bool
	TTL             time.Duration
	TokenTTL        time.Duration
}

type MapConfig struct {
	CenterLat float64
	CenterLng float64
	Zoom      int
}

type ImportConfig struct {
	MaxBytes      int64
	JitterDegrees float64
	SampleSize    int
	SampleSeed    int64
	Containment   string
}

type DatasetSourceConfig struct {
	URL   string
	Token string
}

type Config struct {
	Environment   string
	LogLevel      string
	HTTP          HTTPConfig
	DB            DBConfig
	Session       SessionConfig
	Map           MapConfig
	Import        ImportConfig
	DatasetSource DatasetSourceConfig
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	setDefaults(v)

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			Driver:          v.GetString("DB_DRIVER"),
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Session: SessionConfig{
			Secret:   v.GetString("SESSION_SECRET"),
			TTL:      v.GetDuration("SESSION_TTL"),
			TokenTTL: v.GetDuration("SESSION_TOKEN_TTL"),
		},
		Map: MapConfig{
			CenterLat: v.GetFloat64("MAP_CENTER_LAT"),
			CenterLng: v.GetFloat64("MAP_CENTER_LNG"),
			Zoom:      v.GetInt("MAP_ZOOM"),
		},
		Import: ImportConfig{
			MaxBytes:      v.GetInt64("IMPORT_MAX_BYTES"),
			JitterDegrees: v.GetFloat64("IMPORT_JITTER_DEGREES"),
			SampleSize:    v.GetInt("SAMPLE_SIZE"),
			SampleSeed:    v.GetInt64("SAMPLE_SEED"),
			Containment:   v.GetString("CONTAINMENT_MODE"),
		},
		DatasetSource: DatasetSourceConfig{
			URL:   v.GetString("DATASET_SOURCE_URL"),
			Token: v.GetString("DATASET_SOURCE_TOKEN"),
		},
	}

	if cfg.Session.Secret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.Session.Secret = secret
		cfg.Session.GeneratedSecret = true
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "file:census?mode=memory&cache=shared")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("SESSION_TTL", 2*time.Hour)
	v.SetDefault("SESSION_TOKEN_TTL", 24*time.Hour)
	v.SetDefault("MAP_CENTER_LAT", 19.0760)
	v.SetDefault("MAP_CENTER_LNG", 72.8777)
	v.SetDefault("MAP_ZOOM", 12)
	v.SetDefault("IMPORT_MAX_BYTES", 10<<20)
	v.SetDefault("IMPORT_JITTER_DEGREES", 0.1)
	v.SetDefault("SAMPLE_SIZE", 50)
	v.SetDefault("CONTAINMENT_MODE", "polygon")
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func validate(cfg *Config) error {
	if cfg.DB.Driver != "sqlite" && cfg.DB.Driver != "postgres" {
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DB.Driver)
	}
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT %d out of range", cfg.HTTP.Port)
	}
	if cfg.Session.TTL <= 0 || cfg.Session.TokenTTL <= 0 {
		return fmt.Errorf("SESSION_TTL and SESSION_TOKEN_TTL must be positive")
	}
	if cfg.Map.CenterLat < -90 || cfg.Map.CenterLat > 90 || cfg.Map.CenterLng < -180 || cfg.Map.CenterLng > 180 {
		return fmt.Errorf("MAP_CENTER_LAT/MAP_CENTER_LNG out of range")
	}
	if cfg.Map.Zoom < 2 || cfg.Map.Zoom > 18 {
		return fmt.Errorf("MAP_ZOOM must be between 2 and 18")
	}
	if cfg.Import.MaxBytes <= 0 {
		return fmt.Errorf("IMPORT_MAX_BYTES must be positive")
	}
	if cfg.Import.JitterDegrees <= 0 {
		return fmt.Errorf("IMPORT_JITTER_DEGREES must be positive")
	}
	if cfg.Import.SampleSize < 0 {
		return fmt.Errorf("SAMPLE_SIZE must not be negative")
	}
	if cfg.Import.Containment != "polygon" && cfg.Import.Containment != "bbox" {
		return fmt.Errorf("CONTAINMENT_MODE must be polygon or bbox, got %q", cfg.Import.Containment)
	}
	return nil
}
