package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelvins/geocoder"
	"github.com/spf13/viper"

	"github.com/i474232898/snow-patrol/internal/weather"
)

// EnvPrefix namespaces environment overrides, e.g. SNOW_PATROL_PHONE_NUMBER.
const EnvPrefix = "SNOW_PATROL"

const redactKeep = 6

var validate = validator.New()

// ErrMissingCoordinates is returned when neither coordinates nor a geocoding
// key were configured.
var ErrMissingCoordinates = errors.New("latitude and longitude are required (or set geocoder_api_key)")

// geocode resolves a place name to coordinates. Replaced in tests.
var geocode = func(apiKey, place string) (float64, float64, error) {
	geocoder.ApiKey = apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{City: place})
	if err != nil {
		return 0, 0, err
	}
	return loc.Latitude, loc.Longitude, nil
}

type AppConfig struct {
	ForecastAPIKey     string `mapstructure:"forecast_api_key" validate:"required_unless=ForecastProvider openmeteo"`
	NotificationAPIKey string `mapstructure:"notification_api_key" validate:"required"`

	Location  string  `mapstructure:"location" validate:"required"`
	Latitude  float64 `mapstructure:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `mapstructure:"longitude" validate:"gte=-180,lte=180"`

	Name        string `mapstructure:"name" validate:"required"`
	PhoneNumber string `mapstructure:"phone_number" validate:"required"`

	ForecastProvider     string `mapstructure:"forecast_provider" validate:"oneof=openweather weatherapi openmeteo"`
	Timezone             string `mapstructure:"timezone" validate:"required"`
	NotificationTestMode bool   `mapstructure:"notification_test_mode"`

	HTTPTimeout time.Duration `mapstructure:"http_timeout" validate:"gt=0"`
	StatusAddr  string        `mapstructure:"status_addr" validate:"omitempty,hostname_port"`

	// In-memory poll history retention (0 = unlimited).
	StoreMaxHistory int           `mapstructure:"store_max_history" validate:"gte=0"`
	StoreMaxAge     time.Duration `mapstructure:"store_max_age" validate:"gte=0"`

	LogFile string `mapstructure:"log_file"`

	// DrySpellReminder is a cron expression; empty disables the reminder.
	DrySpellReminder string        `mapstructure:"dry_spell_reminder"`
	DrySpellWindow   time.Duration `mapstructure:"dry_spell_window" validate:"gt=0"`

	GeocoderAPIKey string `mapstructure:"geocoder_api_key"`

	Zone *time.Location `mapstructure:"-" validate:"-"`
}

func setDefaults(v *viper.Viper) {
	// Required keys are registered with empty values so AutomaticEnv can
	// populate them during Unmarshal.
	for _, key := range []string{
		"forecast_api_key", "notification_api_key", "location",
		"name", "phone_number", "geocoder_api_key",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("latitude", 0.0)
	v.SetDefault("longitude", 0.0)
	v.SetDefault("forecast_provider", "openweather")
	v.SetDefault("timezone", "America/Vancouver")
	v.SetDefault("notification_test_mode", false)
	v.SetDefault("http_timeout", 10*time.Second)
	v.SetDefault("status_addr", "")
	v.SetDefault("store_max_history", 288) // 48h at the snowing poll rate
	v.SetDefault("store_max_age", 24*time.Hour)
	v.SetDefault("log_file", ".snow-patrol.log")
	v.SetDefault("dry_spell_reminder", "")
	v.SetDefault("dry_spell_window", 7*24*time.Hour)
}

// Load reads configuration from defaults, an optional config file and the
// environment. A .env file in the working directory is loaded into the
// environment first without overriding variables that are already set.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.resolveCoordinates(); err != nil {
		return nil, err
	}
	if cfg.Latitude == 0 && cfg.Longitude == 0 {
		return nil, ErrMissingCoordinates
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	zone, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Zone = zone

	return cfg, nil
}

// resolveCoordinates geocodes the location name when no coordinates were
// configured and a geocoding key is available.
func (c *AppConfig) resolveCoordinates() error {
	if c.Latitude != 0 || c.Longitude != 0 || c.GeocoderAPIKey == "" || c.Location == "" {
		return nil
	}
	lat, lon, err := geocode(c.GeocoderAPIKey, c.Location)
	if err != nil {
		return fmt.Errorf("geocode %q: %w", c.Location, err)
	}
	c.Latitude, c.Longitude = lat, lon
	return nil
}

// Place returns the monitored location.
func (c *AppConfig) Place() weather.Location {
	return weather.Location{Name: c.Location, Latitude: c.Latitude, Longitude: c.Longitude}
}

// String renders the config for debug logs with secrets shortened.
func (c *AppConfig) String() string {
	return fmt.Sprintf(
		"Config{location=%q (%.4f, %.4f), name=%q, phone=%q, provider=%s, forecast_key=%s, notification_key=%s, test_mode=%t, timezone=%s, http_timeout=%s, status_addr=%q, dry_spell_reminder=%q}",
		c.Location, c.Latitude, c.Longitude, c.Name, c.PhoneNumber, c.ForecastProvider,
		redact(c.ForecastAPIKey), redact(c.NotificationAPIKey), c.NotificationTestMode,
		c.Timezone, c.HTTPTimeout, c.StatusAddr, c.DrySpellReminder,
	)
}

func redact(secret string) string {
	if len(secret) <= redactKeep {
		return strings.Repeat("*", len(secret))
	}
	return secret[:redactKeep] + "..."
}
