package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/compress"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/filler"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/fitter"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/overlay"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultLLMTimeout  = 10 * time.Second
	DefaultEnvFile     = ".env"

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "MCP_PDF_FILL"
)

// Config holds all configuration for the form-fill server and CLI
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Document locations
	PDFDirectory    string
	OutputDirectory string // defaults to PDFDirectory

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum template size in bytes

	// Filling
	Domain          string // abbreviation table: general, medical, legal, business
	DefaultFontSize float64
	MinFontSize     float64
	FitText         bool

	// Model-backed compression
	LLMProvider string // none, openai or gemini
	LLMModel    string
	LLMBaseURL  string
	LLMAPIKey   string
	LLMTimeout  time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:            ModeStdio,
		Host:            DefaultHost,
		Port:            DefaultPort,
		PDFDirectory:    currentDir,
		Version:         "1.0.0",
		ServerName:      "mcp-pdf-formfill",
		LogLevel:        DefaultLogLevel,
		MaxFileSize:     DefaultMaxFileSize,
		Domain:          string(fitter.DomainGeneral),
		DefaultFontSize: overlay.DefaultConfig().DefaultFontSize,
		MinFontSize:     overlay.DefaultConfig().MinFontSize,
		FitText:         true,
		LLMProvider:     compress.ProviderNone,
		LLMTimeout:      DefaultLLMTimeout,
	}
}

// LoadFromFlags parses command line flags, the environment and an optional
// .env file, and returns a validated configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	if err := loadEnvFile(viper.GetString("envfile")); err != nil {
		return nil, err
	}

	populateConfigFromViper(cfg)

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFlagSet builds a configuration from flags registered with
// RegisterFlags on fs, the environment and an optional .env file. It is used
// by commands that own their flag set.
func LoadFromFlagSet(fs *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()
	setupViperEnvironment(cfg)

	for _, key := range flagKeys {
		if f := fs.Lookup(key); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", key, err)
			}
		}
	}

	if err := loadEnvFile(viper.GetString("envfile")); err != nil {
		return nil, err
	}

	populateConfigFromViper(cfg)

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RegisterFlags adds the filling and model flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	cfg := DefaultConfig()
	fs.String("dir", cfg.PDFDirectory, "Directory containing PDF templates")
	fs.String("outdir", "", "Directory for filled PDFs (defaults to --dir)")
	fs.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.Int64("maxfilesize", cfg.MaxFileSize, "Maximum template size in bytes")
	fs.String("domain", cfg.Domain, "Abbreviation domain (general, medical, legal, business)")
	fs.Float64("fontsize", cfg.DefaultFontSize, "Default overlay font size in points")
	fs.Float64("minfontsize", cfg.MinFontSize, "Minimum overlay font size in points")
	fs.Bool("fittext", cfg.FitText, "Fit values into field capacity by default")
	fs.String("llm-provider", cfg.LLMProvider, "Compression model provider (none, openai, gemini)")
	fs.String("llm-model", cfg.LLMModel, "Compression model name")
	fs.String("llm-baseurl", cfg.LLMBaseURL, "OpenAI-compatible API base URL")
	fs.String("llm-apikey", cfg.LLMAPIKey, "API key for the compression model")
	fs.Duration("llm-timeout", cfg.LLMTimeout, "Timeout for a single compression call")
	fs.String("envfile", DefaultEnvFile, "Optional .env file with MCP_PDF_FILL_* settings")
}

var flagKeys = []string{
	"mode", "host", "port", "dir", "outdir", "loglevel", "maxfilesize",
	"domain", "fontsize", "minfontsize", "fittext",
	"llm-provider", "llm-model", "llm-baseurl", "llm-apikey", "llm-timeout", "envfile",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("outdir", cfg.OutputDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("domain", cfg.Domain)
	viper.SetDefault("fontsize", cfg.DefaultFontSize)
	viper.SetDefault("minfontsize", cfg.MinFontSize)
	viper.SetDefault("fittext", cfg.FitText)
	viper.SetDefault("llm-provider", cfg.LLMProvider)
	viper.SetDefault("llm-model", cfg.LLMModel)
	viper.SetDefault("llm-baseurl", cfg.LLMBaseURL)
	viper.SetDefault("llm-apikey", cfg.LLMAPIKey)
	viper.SetDefault("llm-timeout", cfg.LLMTimeout)
	viper.SetDefault("envfile", DefaultEnvFile)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP (SSE)")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	RegisterFlags(pflag.CommandLine)
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Form Fill - A Model Context Protocol server for filling PDF forms\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                      # stdio mode, current directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/forms --outdir=/forms/out     # separate output directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --llm-provider=openai --llm-model=gpt-4o-mini\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  Every flag can be set as %s_<FLAG>, dashes become underscores,\n", envPrefix)
		fmt.Fprintf(os.Stderr, "  e.g. %s_DIR or %s_LLM_APIKEY. A .env file is read if present.\n", envPrefix, envPrefix)
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// loadEnvFile exports the variables of path into the process environment.
// A missing file is not an error; variables already set are kept.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("cannot load env file %s: %w", path, err)
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.OutputDirectory = viper.GetString("outdir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.Domain = viper.GetString("domain")
	cfg.DefaultFontSize = viper.GetFloat64("fontsize")
	cfg.MinFontSize = viper.GetFloat64("minfontsize")
	cfg.FitText = viper.GetBool("fittext")
	cfg.LLMProvider = viper.GetString("llm-provider")
	cfg.LLMModel = viper.GetString("llm-model")
	cfg.LLMBaseURL = viper.GetString("llm-baseurl")
	cfg.LLMAPIKey = viper.GetString("llm-apikey")
	cfg.LLMTimeout = viper.GetDuration("llm-timeout")
}

// finish expands directories and validates
func (c *Config) finish() error {
	if c.PDFDirectory != "" {
		if abs, err := filepath.Abs(c.PDFDirectory); err == nil {
			c.PDFDirectory = abs
		}
	}
	if c.OutputDirectory == "" {
		c.OutputDirectory = c.PDFDirectory
	} else if abs, err := filepath.Abs(c.OutputDirectory); err == nil {
		c.OutputDirectory = abs
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid. Missing directories are created.
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}
	if err := ensureDir(c.PDFDirectory); err != nil {
		return fmt.Errorf("PDF directory: %w", err)
	}
	if c.OutputDirectory != "" && c.OutputDirectory != c.PDFDirectory {
		if err := ensureDir(c.OutputDirectory); err != nil {
			return fmt.Errorf("output directory: %w", err)
		}
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	switch fitter.Domain(strings.ToLower(c.Domain)) {
	case fitter.DomainGeneral, fitter.DomainMedical, fitter.DomainLegal, fitter.DomainBusiness:
	default:
		return fmt.Errorf("invalid abbreviation domain: %s (must be one of: general, medical, legal, business)", c.Domain)
	}

	if c.MinFontSize <= 0 || c.DefaultFontSize < c.MinFontSize {
		return fmt.Errorf("font sizes must satisfy 0 < min (%g) <= default (%g)", c.MinFontSize, c.DefaultFontSize)
	}

	switch strings.ToLower(c.LLMProvider) {
	case "", compress.ProviderNone:
	case compress.ProviderOpenAI, compress.ProviderGemini:
		if c.LLMAPIKey == "" && c.LLMBaseURL == "" {
			return fmt.Errorf("llm provider %s needs an API key or base URL", c.LLMProvider)
		}
	default:
		return fmt.Errorf("invalid llm provider: %s (must be one of: none, openai, gemini)", c.LLMProvider)
	}

	if c.LLMTimeout < 0 {
		return errors.New("llm timeout cannot be negative")
	}

	return nil
}

func ensureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create %s: %w", dir, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access %s: %w", dir, err)
	}
	return nil
}

// CompressSettings selects the compression backend
func (c *Config) CompressSettings() compress.Settings {
	return compress.Settings{
		Provider: c.LLMProvider,
		Model:    c.LLMModel,
		BaseURL:  c.LLMBaseURL,
		APIKey:   c.LLMAPIKey,
	}
}

// FitterConfig returns the fitter settings
func (c *Config) FitterConfig() fitter.Config {
	fc := fitter.DefaultConfig()
	fc.Domain = fitter.Domain(strings.ToLower(c.Domain))
	fc.LLMTimeout = c.LLMTimeout
	return fc
}

// OverlayConfig returns the overlay settings
func (c *Config) OverlayConfig() overlay.Config {
	oc := overlay.DefaultConfig()
	oc.DefaultFontSize = c.DefaultFontSize
	oc.MinFontSize = c.MinFontSize
	if oc.MaxFontSize < oc.DefaultFontSize {
		oc.MaxFontSize = oc.DefaultFontSize
	}
	return oc
}

// EngineConfig returns the fill engine settings
func (c *Config) EngineConfig() filler.Config {
	ec := filler.DefaultConfig()
	ec.MaxTemplateSize = c.MaxFileSize
	return ec
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. The API key is masked.
func (c *Config) String() string {
	key := ""
	if c.LLMAPIKey != "" {
		key = "***"
	}
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, OutputDirectory: %s, "+
		"LogLevel: %s, MaxFileSize: %d, Domain: %s, FitText: %t, LLMProvider: %s, LLMModel: %s, LLMAPIKey: %s}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.OutputDirectory,
		c.LogLevel, c.MaxFileSize, c.Domain, c.FitText, c.LLMProvider, c.LLMModel, key)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
