// Package config loads the relay configuration from defaults, an optional
// YAML file, an optional .env file, the environment and command-line flags,
// in that order of increasing precedence.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvConfigPath   = "THREEJS_MCP_CONFIG"
	EnvViewerAddr   = "THREEJS_MCP_VIEWER_ADDR"
	EnvLogLevel     = "THREEJS_MCP_LOG_LEVEL"
	EnvSendQueue    = "THREEJS_MCP_SEND_QUEUE"
	EnvDevelopment  = "THREEJS_MCP_DEVELOPMENT"
	DefaultEnvFile  = ".env"
	defaultName     = "threejs_mcp_server"
	defaultVersion  = "1.0.0"
	defaultAddr     = ":8082"
	defaultQueue    = 64
	defaultReadMax  = 64 << 20
	defaultWriteTTL = 10 * time.Second
)

// Config represents the relay configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Viewer ViewerConfig `yaml:"viewer"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds the MCP identity
type ServerConfig struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	Instructions string `yaml:"instructions,omitempty"`
}

// ViewerConfig holds the viewer endpoint settings
type ViewerConfig struct {
	Addr         string        `yaml:"addr"`
	SendQueue    int           `yaml:"send_queue"`
	ReadLimit    int64         `yaml:"read_limit"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Options selects the files Load reads. Empty fields fall back to
// EnvConfigPath and DefaultEnvFile.
type Options struct {
	ConfigPath string
	EnvFile    string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:    defaultName,
			Version: defaultVersion,
		},
		Viewer: ViewerConfig{
			Addr:         defaultAddr,
			SendQueue:    defaultQueue,
			ReadLimit:    defaultReadMax,
			WriteTimeout: defaultWriteTTL,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. A missing .env file is ignored; a missing
// YAML file is an error only when a path was given.
func Load(opts Options) (*Config, error) {
	cfg := DefaultConfig()

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(err, "failed to load env file %s", envFile)
	}

	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvViewerAddr); ok {
		c.Viewer.Addr = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvSendQueue); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvSendQueue)
		}
		c.Viewer.SendQueue = n
	}
	if v, ok := os.LookupEnv(EnvDevelopment); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvDevelopment)
		}
		c.Log.Development = b
	}
	return nil
}

// RegisterFlags defines the override flags on fs. Call ApplyFlags after
// fs.Parse to copy the ones that were set.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		fs:          fs,
		ConfigPath:  fs.String("config", "", "Path to a YAML config file"),
		EnvFile:     fs.String("env-file", DefaultEnvFile, "Path to a .env file"),
		ViewerAddr:  fs.String("viewer-addr", defaultAddr, "Viewer WebSocket listen address"),
		LogLevel:    fs.String("log-level", "info", "Log level (debug, info, warn, error)"),
		SendQueue:   fs.Int("send-queue", defaultQueue, "Frames buffered per viewer"),
		Development: fs.Bool("dev", false, "Human-readable development logging"),
	}
}

// Flags holds the parsed command-line overrides.
type Flags struct {
	fs          *flag.FlagSet
	ConfigPath  *string
	EnvFile     *string
	ViewerAddr  *string
	LogLevel    *string
	SendQueue   *int
	Development *bool
}

// Options returns the file locations named on the command line.
func (f *Flags) Options() Options {
	return Options{ConfigPath: *f.ConfigPath, EnvFile: *f.EnvFile}
}

// ApplyFlags overrides cfg with every flag given explicitly.
func (c *Config) ApplyFlags(f *Flags) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "viewer-addr":
			c.Viewer.Addr = *f.ViewerAddr
		case "log-level":
			c.Log.Level = *f.LogLevel
		case "send-queue":
			c.Viewer.SendQueue = *f.SendQueue
		case "dev":
			c.Log.Development = *f.Development
		}
	})
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Viewer.Addr == "" {
		return errors.New("viewer address must not be empty")
	}
	if c.Viewer.SendQueue <= 0 {
		return errors.Errorf("viewer send queue must be positive, got %d", c.Viewer.SendQueue)
	}
	if c.Viewer.ReadLimit <= 0 {
		return errors.Errorf("viewer read limit must be positive, got %d", c.Viewer.ReadLimit)
	}
	if c.Server.Name == "" {
		return errors.New("server name must not be empty")
	}
	return nil
}
