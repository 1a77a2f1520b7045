package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		DataPort int `mapstructure:"data_port"`
		UIPort   int `mapstructure:"ui_port"`
	} `mapstructure:"server"`
	Auth struct {
		JWTSecret     string   `mapstructure:"jwt_secret"`
		JWTExpiration int      `mapstructure:"jwt_expiration"` // in minutes
		APIKeys       []string `mapstructure:"api_keys"`
		Users         []User   `mapstructure:"users"`
	} `mapstructure:"auth"`
	Monitoring Monitoring `mapstructure:"monitoring"`
	Geofence   Geofence   `mapstructure:"geofence"`
}

type User struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

// Monitoring holds the client-side detection thresholds and the server-side
// poll interval. Durations are expressed in milliseconds in the config file
// so fractional seconds (the 3.4s blur delay) stay representable.
type Monitoring struct {
	SampleIntervalMs    int     `mapstructure:"sample_interval_ms"`
	PollIntervalMs      int     `mapstructure:"poll_interval_ms"`
	VisibilityDelayMs   int     `mapstructure:"visibility_delay_ms"`
	BlurDelayMs         int     `mapstructure:"blur_delay_ms"`
	AlertCooldownMs     int     `mapstructure:"alert_cooldown_ms"`
	SplitSustainMs      int     `mapstructure:"split_sustain_ms"`
	SplitCountdownMs    int     `mapstructure:"split_countdown_ms"`
	DesktopViewportMin  float64 `mapstructure:"desktop_viewport_min"`
	MobileViewportMin   float64 `mapstructure:"mobile_viewport_min"`
	FloatingAreaMax     float64 `mapstructure:"floating_area_max"`
	FloatingOffsetPx    float64 `mapstructure:"floating_offset_px"`
	MobileHeightDeltaPx float64 `mapstructure:"mobile_height_delta_px"`
	GeoTimeoutMs        int     `mapstructure:"geo_timeout_ms"`
}

type Geofence struct {
	Latitude    float64 `mapstructure:"latitude"`
	Longitude   float64 `mapstructure:"longitude"`
	Radius      float64 `mapstructure:"radius"`
	MinAccuracy float64 `mapstructure:"min_accuracy"`
}

func (m Monitoring) SampleInterval() time.Duration {
	return time.Duration(m.SampleIntervalMs) * time.Millisecond
}

func (m Monitoring) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalMs) * time.Millisecond
}

func (m Monitoring) VisibilityDelay() time.Duration {
	return time.Duration(m.VisibilityDelayMs) * time.Millisecond
}

func (m Monitoring) BlurDelay() time.Duration {
	return time.Duration(m.BlurDelayMs) * time.Millisecond
}

func (m Monitoring) AlertCooldown() time.Duration {
	return time.Duration(m.AlertCooldownMs) * time.Millisecond
}

func (m Monitoring) SplitSustain() time.Duration {
	return time.Duration(m.SplitSustainMs) * time.Millisecond
}

func (m Monitoring) SplitCountdown() time.Duration {
	return time.Duration(m.SplitCountdownMs) * time.Millisecond
}

func (m Monitoring) GeoTimeout() time.Duration {
	return time.Duration(m.GeoTimeoutMs) * time.Millisecond
}

var AppConfig Config

func LoadConfig(path string) error {
	// load .env if present so viper.AutomaticEnv picks the values up
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: error loading .env file: %v", err)
		}
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: error reading config file: %s, continuing with defaults\n", err)
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Printf("Unable to decode config into struct: %v", err)
		return err
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("server.data_port", 8080)
	viper.SetDefault("server.ui_port", 8081)

	viper.SetDefault("auth.jwt_expiration", 120)

	viper.SetDefault("monitoring.sample_interval_ms", 3000)
	viper.SetDefault("monitoring.poll_interval_ms", 2000)
	viper.SetDefault("monitoring.visibility_delay_ms", 4000)
	viper.SetDefault("monitoring.blur_delay_ms", 3400)
	viper.SetDefault("monitoring.alert_cooldown_ms", 2000)
	viper.SetDefault("monitoring.split_sustain_ms", 6000)
	viper.SetDefault("monitoring.split_countdown_ms", 10000)
	viper.SetDefault("monitoring.desktop_viewport_min", 0.8)
	viper.SetDefault("monitoring.mobile_viewport_min", 0.7)
	viper.SetDefault("monitoring.floating_area_max", 0.9)
	viper.SetDefault("monitoring.floating_offset_px", 10)
	viper.SetDefault("monitoring.mobile_height_delta_px", 100)
	viper.SetDefault("monitoring.geo_timeout_ms", 10000)

	viper.SetDefault("geofence.radius", 100)
	viper.SetDefault("geofence.min_accuracy", 0.5)
}
