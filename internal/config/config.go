package config

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Firmware  FirmwareConfig
	Device    DeviceConfig
	RateLimit RateLimitConfig
	MQTT      MQTTConfig
	Admin     AdminConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type FirmwareConfig struct {
	// Dir is the directory where uploaded firmware binaries are stored.
	Dir string
}

type DeviceConfig struct {
	// OnlineThresholdMinutes decides how recently a device must have been
	// seen to count as online.
	OnlineThresholdMinutes int
}

type RateLimitConfig struct {
	DeviceRPS   float64 // Sustained requests per second per device identity
	DeviceBurst int     // Burst size per device identity
}

type MQTTConfig struct {
	Broker      string // Empty disables the MQTT ingest bridge
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

type AdminConfig struct {
	// APIToken authenticates callers of the administrative API. The
	// surrounding deployment is expected to provision and rotate it.
	APIToken string
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(homeDir)
	}
	viper.AutomaticEnv()

	viper.SetDefault("FIRMWARE_DIR", "./data/firmware")
	viper.SetDefault("DEVICE_ONLINE_THRESHOLD_MINUTES", 10)
	viper.SetDefault("RATE_LIMIT_DEVICE_RPS", 1.0)
	viper.SetDefault("RATE_LIMIT_DEVICE_BURST", 60)
	viper.SetDefault("MQTT_TOPIC_PREFIX", "sensors")

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("Warning: config file not found: %v. Falling back to environment variables only.", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("SERVER_PORT"),
			Host:        viper.GetString("SERVER_HOST"),
			Environment: viper.GetString("ENVIRONMENT"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Firmware: FirmwareConfig{
			Dir: viper.GetString("FIRMWARE_DIR"),
		},
		Device: DeviceConfig{
			OnlineThresholdMinutes: viper.GetInt("DEVICE_ONLINE_THRESHOLD_MINUTES"),
		},
		RateLimit: RateLimitConfig{
			DeviceRPS:   viper.GetFloat64("RATE_LIMIT_DEVICE_RPS"),
			DeviceBurst: viper.GetInt("RATE_LIMIT_DEVICE_BURST"),
		},
		MQTT: MQTTConfig{
			Broker:      viper.GetString("MQTT_BROKER"),
			ClientID:    viper.GetString("MQTT_CLIENT_ID"),
			Username:    viper.GetString("MQTT_USERNAME"),
			Password:    viper.GetString("MQTT_PASSWORD"),
			TopicPrefix: viper.GetString("MQTT_TOPIC_PREFIX"),
		},
		Admin: AdminConfig{
			APIToken: viper.GetString("ADMIN_API_TOKEN"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders:   viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
			ExposedHeaders:   viper.GetStringSlice("CORS_EXPOSED_HEADERS"),
			AllowCredentials: viper.GetBool("CORS_ALLOW_CREDENTIALS"),
			MaxAge:           viper.GetInt("CORS_MAX_AGE"),
		},
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
