// Package app assembles the fill engine and logger shared by the binaries.
package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/a3tai/mcp-pdf-formfill/internal/config"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/compress"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/filler"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/fitter"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/overlay"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/schema"
)

// NewLogger builds a logger for cfg. Logs always go to stderr so stdout stays
// free for the MCP stdio transport and CLI output.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.IsDebug() {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build(zap.Fields(zap.String("service", cfg.ServerName)))
}

// NewEngine wires the schema provider, fitter and overlay renderer described by cfg
func NewEngine(cfg *config.Config, logger *zap.Logger) *filler.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	return filler.New(
		schema.NewProvider(logger),
		NewFitter(cfg, logger),
		overlay.New(logger, cfg.OverlayConfig()),
		logger,
		cfg.EngineConfig(),
	)
}

// NewFitter builds a fitter with the configured abbreviation domain and, when
// a model provider is set, lazy model compression
func NewFitter(cfg *config.Config, logger *zap.Logger) *fitter.Fitter {
	var compressor compress.Compressor = compress.Noop{}
	if p := strings.ToLower(cfg.LLMProvider); p != "" && p != compress.ProviderNone {
		compressor = compress.NewLazy(compress.Factory(cfg.CompressSettings()))
	}
	return fitter.New(compressor, logger, cfg.FitterConfig())
}
