package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-formfill/internal/config"
	"github.com/a3tai/mcp-pdf-formfill/internal/descriptions"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/filler"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/schema"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/security"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	engine    *filler.Engine
	paths     *security.PathValidator
	mcpServer *server.MCPServer
	logger    *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, engine *filler.Engine, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	paths, err := security.NewPathValidator(cfg.PDFDirectory, cfg.OutputDirectory)
	if err != nil {
		return nil, fmt.Errorf("path validator: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		engine:    engine,
		paths:     paths,
		mcpServer: mcpServer,
		logger:    logger,
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolFormFields,
		mcp.WithDescription(descriptions.PDFFormFieldsDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("PDF template, absolute or relative to the template directory"),
		),
		mcp.WithString("format",
			mcp.Description("Response format"),
			mcp.Enum("text", "json"),
		),
	), s.handleFormFields)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolFormPreview,
		mcp.WithDescription(descriptions.PDFFormPreviewDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("PDF template, absolute or relative to the template directory"),
		),
		mcp.WithObject("data",
			mcp.Required(),
			mcp.Description("Field values keyed by field name or label"),
		),
		mcp.WithBoolean("fit_text",
			mcp.Description("Shorten values that exceed a field's capacity"),
		),
	), s.handleFormPreview)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolFormFill,
		mcp.WithDescription(descriptions.PDFFormFillDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("PDF template, absolute or relative to the template directory"),
		),
		mcp.WithObject("data",
			mcp.Required(),
			mcp.Description("Field values keyed by field name or label"),
		),
		mcp.WithString("output",
			mcp.Description("Output file, relative to the output directory (default <template>-filled.pdf)"),
		),
		mcp.WithBoolean("flatten",
			mcp.Description("Remove interactive widgets from the filled document"),
		),
		mcp.WithBoolean("fit_text",
			mcp.Description("Shorten values that exceed a field's capacity"),
		),
	), s.handleFormFill)

	s.mcpServer.AddTool(mcp.NewTool(
		descriptions.ToolServerInfo,
		mcp.WithDescription(descriptions.PDFServerInfoDescription),
	), s.handleServerInfo)
}

func (s *Server) handleFormFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	template, err := s.readTemplate(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sch, err := s.engine.Fields(ctx, template)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if format, _ := request.GetArguments()["format"].(string); format == "json" {
		return jsonResult(sch)
	}
	return mcp.NewToolResultText(formatSchema(path, sch)), nil
}

func (s *Server) handleFormPreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()
	data, err := dataArgument(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	template, err := s.readTemplate(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entries, err := s.engine.Preview(ctx, template, data, boolArgument(args, "fit_text", s.config.FitText))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatPreview(path, entries)), nil
}

func (s *Server) handleFormFill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()
	data, err := dataArgument(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	templatePath, err := s.paths.Template(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	output, _ := args["output"].(string)
	if output == "" {
		output = defaultOutputName(templatePath)
	}
	outputPath, err := s.paths.Output(output)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if outputPath == templatePath {
		return mcp.NewToolResultError("output must not overwrite the template"), nil
	}

	doc := s.engine.Fill(ctx, filler.Request{
		TemplatePath: templatePath,
		Data:         data,
		Flatten:      boolArgument(args, "flatten", false),
		FitText:      boolArgument(args, "fit_text", s.config.FitText),
		OutputPath:   outputPath,
	})
	s.logger.Info("mcp.fill",
		zap.String("request_id", doc.RequestID),
		zap.String("template", templatePath),
		zap.Bool("success", doc.Success),
		zap.Int("fields_filled", doc.FieldsFilled()),
		zap.Int("fields_failed", doc.FieldsFailed()))

	text := formatFill(doc)
	if !doc.Success {
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("📁 Template Directory: %s\n", s.paths.TemplateDir())
	text += fmt.Sprintf("💾 Output Directory: %s\n", s.paths.OutputDir())
	text += fmt.Sprintf("📏 Max File Size: %d MB\n\n", s.config.MaxFileSize/(1024*1024))

	text += "⚙️  Fill Settings:\n"
	text += fmt.Sprintf("  Fit text by default: %t\n", s.config.FitText)
	text += fmt.Sprintf("  Abbreviation domain: %s\n", s.config.Domain)
	text += fmt.Sprintf("  Overlay font size: %g (min %g)\n", s.config.DefaultFontSize, s.config.MinFontSize)
	provider := s.config.LLMProvider
	if provider == "" {
		provider = "none"
	}
	text += fmt.Sprintf("  Model compression: %s", provider)
	if s.config.LLMModel != "" {
		text += fmt.Sprintf(" (%s)", s.config.LLMModel)
	}
	text += "\n"

	if files := s.listTemplates(10); len(files) > 0 {
		text += fmt.Sprintf("\n📂 Templates (%d shown):\n", len(files))
		for i, f := range files {
			text += fmt.Sprintf("   %d. %s\n", i+1, f)
		}
	}

	text += "\n🛠️  Available Tools:\n"
	for _, name := range descriptions.GetAllToolNames() {
		desc := descriptions.GetToolDescription(name)
		if i := strings.Index(desc, "\n"); i >= 0 {
			desc = desc[:i]
		}
		text += fmt.Sprintf("• %s: %s\n", name, desc)
	}
	return mcp.NewToolResultText(text), nil
}

// readTemplate reads a confined template within the size limit
func (s *Server) readTemplate(path string) ([]byte, error) {
	resolved, err := s.paths.Template(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, err
	}
	if info.Size() > s.config.MaxFileSize {
		return nil, fmt.Errorf("template too large: %d bytes (max %d)", info.Size(), s.config.MaxFileSize)
	}
	return os.ReadFile(resolved)
}

// listTemplates returns up to limit PDF names in the template directory
func (s *Server) listTemplates(limit int) []string {
	entries, err := os.ReadDir(s.paths.TemplateDir())
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		out = append(out, e.Name())
		if len(out) == limit {
			break
		}
	}
	return out
}

func defaultOutputName(template string) string {
	base := filepath.Base(template)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "-filled.pdf"
}

// dataArgument accepts the data argument as an object or a JSON object string
func dataArgument(args map[string]any) (map[string]string, error) {
	raw, ok := args["data"]
	if !ok || raw == nil {
		return nil, errors.New("required argument \"data\" not found")
	}

	var obj map[string]any
	switch v := raw.(type) {
	case map[string]any:
		obj = v
	case string:
		if err := json.Unmarshal([]byte(v), &obj); err != nil {
			return nil, fmt.Errorf("data must be a JSON object: %w", err)
		}
	default:
		return nil, fmt.Errorf("data must be an object, got %T", raw)
	}

	data := make(map[string]string, len(obj))
	for k, v := range obj {
		data[k] = stringValue(v)
	}
	return data, nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func boolArgument(args map[string]any, key string, def bool) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// Formatting methods
func formatSchema(path string, sch *schema.Schema) string {
	text := fmt.Sprintf("Form fields of %s\n", path)
	text += fmt.Sprintf("Pages: %d\n", sch.TotalPages)
	if sch.Title != "" {
		text += fmt.Sprintf("Title: %s\n", sch.Title)
	}
	if sch.FormType != "" {
		text += fmt.Sprintf("Known form: %s\n", sch.FormType)
	}
	if sch.IsXFA {
		text += "XFA: yes (the XFA layer is removed when filling)\n"
	}
	if sch.IsScanned {
		text += "\n⚠️  WARNING: This document has no fields and no text layer; it appears to be scanned.\n"
	}
	text += fmt.Sprintf("Fields: %d\n", len(sch.Fields))

	for i, f := range sch.Fields {
		text += fmt.Sprintf("\n%d. %s (%s, %s)\n", i+1, f.ID, f.Kind, f.Source)
		if f.Label != "" && f.Label != f.Name {
			text += fmt.Sprintf("   Label: %s\n", f.Label)
		}
		if f.Purpose != "" && f.Purpose != "text" {
			text += fmt.Sprintf("   Purpose: %s\n", f.Purpose)
		}
		if f.Placed() {
			text += fmt.Sprintf("   Page %d at (%.0f, %.0f) size %.0fx%.0f\n",
				f.Position.Page+1, f.Position.X, f.Position.Y, f.Position.Width, f.Position.Height)
		}
		if f.Constraints.MaxLength > 0 {
			text += fmt.Sprintf("   Max length: %d\n", f.Constraints.MaxLength)
		}
		if f.Constraints.Required {
			text += "   Required\n"
		}
		if len(f.Options) > 0 {
			text += fmt.Sprintf("   Options: %s\n", strings.Join(f.Options, ", "))
		}
	}
	return text
}

func formatPreview(path string, entries []filler.PreviewEntry) string {
	text := fmt.Sprintf("Fill preview for %s (%d keys)\n", path, len(entries))
	for i, e := range entries {
		text += fmt.Sprintf("\n%d. %s", i+1, e.Key)
		if e.MatchedField == "" {
			text += fmt.Sprintf(" → not matched: %s\n", e.Error)
			continue
		}
		text += fmt.Sprintf(" → %s (%s, %s)\n", e.MatchedField, e.MatchStrategy, e.Method)
		if e.Error != "" {
			text += fmt.Sprintf("   ❌ %s\n", e.Error)
			continue
		}
		text += fmt.Sprintf("   Value: %q\n", e.Value)
		if e.FitResult != nil && e.FitResult.Modified() {
			text += fmt.Sprintf("   Shortened by %s (score %.2f) from %q\n",
				e.FitResult.Strategy, e.FitResult.Score, e.FitResult.Original)
		}
	}
	return text
}

func formatFill(doc *filler.FilledDocument) string {
	var text string
	if doc.Success {
		text = "✅ Form filled"
		if doc.OutputPath != "" {
			text += fmt.Sprintf(": %s", doc.OutputPath)
		}
		text += "\n"
	} else {
		text = "❌ Form filling failed\n"
	}
	text += fmt.Sprintf("Request: %s\n", doc.RequestID)
	text += fmt.Sprintf("Fields filled: %d, failed: %d\n", doc.FieldsFilled(), doc.FieldsFailed())

	if len(doc.FieldResults) > 0 {
		text += "\nFields:\n"
		for _, r := range doc.FieldResults {
			if r.Success {
				text += fmt.Sprintf("  ✓ %s → %s [%s] %q\n", r.FieldName, r.MatchedField, r.Method, r.FilledValue)
				continue
			}
			text += fmt.Sprintf("  ✗ %s: %s\n", r.FieldName, r.Error)
		}
	}
	for _, w := range doc.Warnings {
		text += fmt.Sprintf("⚠️  %s\n", w)
	}
	for _, e := range doc.Errors {
		text += fmt.Sprintf("Error: %s\n", e)
	}
	return text
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode serves MCP over stdin/stdout until ctx is cancelled or stdin closes
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Debug("mcp.stdio.start",
		zap.String("template_dir", s.paths.TemplateDir()),
		zap.String("output_dir", s.paths.OutputDir()))

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over HTTP with server-sent events until ctx is cancelled
func (s *Server) runServerMode(ctx context.Context) error {
	addr := s.config.Address()
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+addr))

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mcp.http.start", zap.String("address", addr))
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return nil
	}
}
