package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/a3tai/mcp-pdf-formfill/internal/config"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/filler"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/testpdf"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level   string
		enabled zapcore.Level
		off     zapcore.Level
	}{
		{"debug", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"info", zapcore.InfoLevel, zapcore.DebugLevel},
		{"error", zapcore.ErrorLevel, zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.LogLevel = tt.level
			logger, err := NewLogger(cfg)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.off))
		})
	}

	cfg := config.DefaultConfig()
	cfg.LogLevel = "loud"
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewEngine(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLMProvider = "openai"
	cfg.LLMBaseURL = "http://127.0.0.1:1/v1"
	cfg.LLMTimeout = 0

	engine := NewEngine(cfg, zaptest.NewLogger(t))
	require.NotNil(t, engine)

	template, err := testpdf.TextFields(testpdf.TextField{ID: "Name", X: 100, Y: 700, Width: 200})
	require.NoError(t, err)

	doc := engine.Fill(context.Background(), filler.Request{
		TemplateBytes: template,
		Data:          map[string]string{"name": "Jane Doe"},
	})
	require.True(t, doc.Success, doc.Errors)
	assert.Equal(t, 1, doc.FieldsFilled())
}
