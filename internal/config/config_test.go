package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/fitter"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "stdio", cfg.Mode)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "mcp-pdf-formfill", cfg.ServerName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, 12.0, cfg.DefaultFontSize)
	assert.Equal(t, 6.0, cfg.MinFontSize)

	currentDir, _ := os.Getwd()
	assert.Equal(t, currentDir, cfg.PDFDirectory)
}

func TestConfigValidate(t *testing.T) {
	tmp := t.TempDir()
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.PDFDirectory = tmp
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid stdio", func(c *Config) {}, ""},
		{"valid server", func(c *Config) { c.Mode = ModeServer; c.Port = 9000 }, ""},
		{"port ignored in stdio", func(c *Config) { c.Port = 0 }, ""},
		{"openai with key", func(c *Config) { c.LLMProvider = "openai"; c.LLMAPIKey = "k" }, ""},
		{"openai local endpoint", func(c *Config) { c.LLMProvider = "OpenAI"; c.LLMBaseURL = "http://localhost:1234/v1" }, ""},
		{"uppercase domain", func(c *Config) { c.Domain = "Legal" }, ""},
		{"bad mode", func(c *Config) { c.Mode = "http" }, "mode must be"},
		{"bad port", func(c *Config) { c.Mode = ModeServer; c.Port = 0 }, "port must be"},
		{"empty dir", func(c *Config) { c.PDFDirectory = "" }, "cannot be empty"},
		{"zero size", func(c *Config) { c.MaxFileSize = 0 }, "must be positive"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"bad domain", func(c *Config) { c.Domain = "sports" }, "abbreviation domain"},
		{"zero min font", func(c *Config) { c.MinFontSize = 0 }, "font sizes"},
		{"gemini without key", func(c *Config) { c.LLMProvider = "gemini" }, "needs an API key"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "claude" }, "invalid llm provider"},
		{"negative timeout", func(c *Config) { c.LLMTimeout = -time.Second }, "cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidate_CreatesDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.PDFDirectory = filepath.Join(base, "templates")
	cfg.OutputDirectory = filepath.Join(base, "out")

	require.NoError(t, cfg.Validate())
	assert.DirExists(t, cfg.PDFDirectory)
	assert.DirExists(t, cfg.OutputDirectory)
}

func TestConfigValidate_DirectoryIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "templates")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	cfg := DefaultConfig()
	cfg.PDFDirectory = filepath.Join(file, "nested")
	assert.Error(t, cfg.Validate())
}

func TestConfigDerivedSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Domain = "Medical"
	cfg.LLMProvider = "openai"
	cfg.LLMModel = "gpt-4o-mini"
	cfg.LLMAPIKey = "k"
	cfg.LLMTimeout = 2 * time.Second
	cfg.DefaultFontSize = 16
	cfg.MinFontSize = 8
	cfg.MaxFileSize = 1024

	s := cfg.CompressSettings()
	assert.Equal(t, "openai", s.Provider)
	assert.Equal(t, "gpt-4o-mini", s.Model)
	assert.Equal(t, "k", s.APIKey)

	fc := cfg.FitterConfig()
	assert.Equal(t, fitter.DomainMedical, fc.Domain)
	assert.Equal(t, 2*time.Second, fc.LLMTimeout)

	oc := cfg.OverlayConfig()
	assert.Equal(t, 16.0, oc.DefaultFontSize)
	assert.Equal(t, 8.0, oc.MinFontSize)
	assert.Equal(t, 16.0, oc.MaxFontSize)

	assert.Equal(t, int64(1024), cfg.EngineConfig().MaxTemplateSize)
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLMAPIKey = "sk-very-secret"

	s := cfg.String()
	assert.Contains(t, s, "Mode: stdio")
	assert.Contains(t, s, "LLMAPIKey: ***")
	assert.NotContains(t, s, "sk-very-secret")
}

func TestConfigModes(t *testing.T) {
	cfg := &Config{Mode: ModeStdio}
	assert.True(t, cfg.IsStdioMode())
	assert.False(t, cfg.IsServerMode())

	cfg.Mode = ModeServer
	assert.True(t, cfg.IsServerMode())
	assert.False(t, cfg.IsStdioMode())
}
