// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         string        `mapstructure:"port" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// SerialConfig represents the arm controller's serial link
type SerialConfig struct {
	DevicePath        string        `mapstructure:"device_path" validate:"required"`
	BaudRate          int           `mapstructure:"baud_rate" validate:"required"`
	DataBits          int           `mapstructure:"data_bits"`
	StopBits          int           `mapstructure:"stop_bits"`
	Parity            string        `mapstructure:"parity"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	QueueSize         int           `mapstructure:"queue_size"`
	AllowManualReopen bool          `mapstructure:"allow_manual_reopen"`
}

// BridgeConfig represents the WebSocket gateway behaviour
type BridgeConfig struct {
	DefaultVariant      string `mapstructure:"default_variant"`
	ReportResults       bool   `mapstructure:"report_results"`
	ConnectionQueueSize int    `mapstructure:"connection_queue_size"`
	ReadLimit           int64  `mapstructure:"read_limit"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// AutoDevicePath selects the first USB serial port found at startup
const AutoDevicePath = "auto"

// Load loads configuration from the config file, environment variables and
// command line flags, in increasing order of precedence
func Load(args []string) (*Config, error) {
	v := viper.New()

	flags := pflag.NewFlagSet("servo-bridge", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to config file")
	flags.String("serial.device_path", "", "serial device path, or \"auto\"")
	flags.Int("serial.baud_rate", 0, "serial baud rate")
	flags.String("server.port", "", "port the WebSocket gateway listens on")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	// Only flags given explicitly override file and environment values
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed && f.Name != "config" {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	if *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./internal/config")
		v.AddConfigPath("../../internal/config")
	}

	// Environment variable support
	v.SetEnvPrefix("SERVO_BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// A missing config file is fine, defaults and environment cover everything
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// Serial defaults
	v.SetDefault("serial.device_path", AutoDevicePath)
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.write_timeout", "2s")
	v.SetDefault("serial.queue_size", 64)
	v.SetDefault("serial.allow_manual_reopen", false)

	// Bridge defaults
	v.SetDefault("bridge.default_variant", "text")
	v.SetDefault("bridge.report_results", true)
	v.SetDefault("bridge.connection_queue_size", 16)
	v.SetDefault("bridge.read_limit", 1024)

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// App defaults
	v.SetDefault("app.name", "servo-bridge")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Serial.DevicePath == "" {
		return fmt.Errorf("serial.device_path is required")
	}
	if config.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive")
	}
	if config.Serial.DataBits < 5 || config.Serial.DataBits > 8 {
		return fmt.Errorf("serial.data_bits must be between 5 and 8")
	}
	if config.Serial.StopBits != 1 && config.Serial.StopBits != 2 {
		return fmt.Errorf("serial.stop_bits must be 1 or 2")
	}
	if config.Serial.WriteTimeout <= 0 {
		return fmt.Errorf("serial.write_timeout must be positive")
	}
	if config.Serial.QueueSize <= 0 {
		return fmt.Errorf("serial.queue_size must be positive")
	}
	if config.Bridge.ConnectionQueueSize <= 0 {
		return fmt.Errorf("bridge.connection_queue_size must be positive")
	}
	if config.Bridge.ReadLimit <= 0 {
		return fmt.Errorf("bridge.read_limit must be positive")
	}

	if !contains([]string{"none", "odd", "even", "mark", "space"}, config.Serial.Parity) {
		return fmt.Errorf("serial.parity must be one of: none, odd, even, mark, space")
	}

	// Variant names are checked against the codec table by the bridge service
	if config.Bridge.DefaultVariant == "" {
		return fmt.Errorf("bridge.default_variant is required")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}

// UsesAutoDevice reports whether the serial device is discovered at startup
func (c *SerialConfig) UsesAutoDevice() bool {
	return strings.EqualFold(c.DevicePath, AutoDevicePath)
}
