package core

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jo-hoe/formulastore/internal/backend/database"
	"github.com/jo-hoe/formulastore/internal/backend/imageprocessing"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort              = 8080
	DefaultDatabaseFile      = "history.db"
	DefaultPreviewMaxWidth   = 2048
	DefaultSvgFallbackWidth  = 800
	DefaultSvgFallbackHeight = 600
	DefaultPreviewMaxPixels  = imageprocessing.DefaultMaxPixels
	defaultLogLevel          = "info"
	environmentPort          = "PORT"
	environmentDatabaseURL   = "DATABASE_URL"
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
	KeyPrefix        string `yaml:"keyPrefix"`
}

// Preview configures the PNG previews rendered from the stored image.
type Preview struct {
	MaxWidth          int `yaml:"maxWidth"`
	MaxPixels         int `yaml:"maxPixels"`
	SvgFallbackWidth  int `yaml:"svgFallbackWidth"`
	SvgFallbackHeight int `yaml:"svgFallbackHeight"`
}

type ServiceConfig struct {
	Port          int      `yaml:"port"`
	LogLevel      string   `yaml:"logLevel"`
	AllowShutdown bool     `yaml:"allowShutdown"`
	Database      Database `yaml:"database"`
	Preview       Preview  `yaml:"preview"`
}

// DefaultConfig returns the configuration used for a local run without a config file.
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:     DefaultPort,
		LogLevel: defaultLogLevel,
		Database: Database{
			Type:             database.TypeSQLite,
			ConnectionString: DefaultDatabaseFile,
		},
		Preview: Preview{
			MaxWidth:          DefaultPreviewMaxWidth,
			MaxPixels:         DefaultPreviewMaxPixels,
			SvgFallbackWidth:  DefaultSvgFallbackWidth,
			SvgFallbackHeight: DefaultSvgFallbackHeight,
		},
	}
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML on top of the defaults so omitted keys keep their default value
	config := DefaultConfig()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}

	return config, nil
}

// LoadConfigOrDefault behaves like LoadConfig but falls back to DefaultConfig when
// the file does not exist and the path was not requested explicitly.
func LoadConfigOrDefault(configPath string, explicit bool) (*ServiceConfig, error) {
	config, err := LoadConfig(configPath)
	if err == nil {
		return config, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	slog.Info("no config file found, using defaults", "path", configPath)
	return DefaultConfig(), nil
}

// ApplyEnvironment overrides the port and database from PORT and DATABASE_URL.
// lookup is usually os.LookupEnv.
func (c *ServiceConfig) ApplyEnvironment(lookup func(string) (string, bool)) error {
	if value, ok := lookup(environmentPort); ok && value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", environmentPort, value, err)
		}
		c.Port = port
	}

	if value, ok := lookup(environmentDatabaseURL); ok && value != "" {
		c.Database.Type = databaseTypeFromURL(value)
		c.Database.ConnectionString = value
	}

	return c.Validate()
}

func databaseTypeFromURL(url string) string {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return database.TypePostgres
	case strings.HasPrefix(url, "redis://"), strings.HasPrefix(url, "rediss://"):
		return database.TypeRedis
	default:
		return database.TypeSQLite
	}
}

// Validate checks value ranges and the database selection.
func (c *ServiceConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	switch c.Database.Type {
	case database.TypeSQLite, database.TypePostgres, database.TypeRedis:
	default:
		return fmt.Errorf("unsupported database type: %q", c.Database.Type)
	}
	if c.Database.ConnectionString == "" {
		return fmt.Errorf("database connectionString must not be empty")
	}

	if c.Preview.MaxWidth <= 0 {
		return fmt.Errorf("preview maxWidth must be positive, got %d", c.Preview.MaxWidth)
	}
	if c.Preview.MaxPixels <= 0 {
		return fmt.Errorf("preview maxPixels must be positive, got %d", c.Preview.MaxPixels)
	}
	if c.Preview.SvgFallbackWidth <= 0 || c.Preview.SvgFallbackHeight <= 0 {
		return fmt.Errorf("preview svg fallback size must be positive, got %dx%d",
			c.Preview.SvgFallbackWidth, c.Preview.SvgFallbackHeight)
	}

	return nil
}

// SlogLevel translates LogLevel into a slog.Level; empty means info.
func (c *ServiceConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", c.LogLevel)
	}
}
