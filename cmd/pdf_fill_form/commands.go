package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-pdf-formfill/internal/app"
	"github.com/a3tai/mcp-pdf-formfill/internal/config"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/filler"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/fitter"
)

// quietLogLevel keeps progress logs off the terminal unless asked for
const quietLogLevel = "warn"

// env holds what every subcommand needs once flags are parsed
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	engine *filler.Engine
	json   bool
}

func newRootCmd() *cobra.Command {
	e := &env{}
	var format string

	root := &cobra.Command{
		Use:   "pdf_fill_form",
		Short: "Fill PDF forms from JSON data",
		Long: `pdf_fill_form fills AcroForm, XFA and plain PDF forms from a flat JSON object
of field names to values. Keys are matched to fields by name or label, values
are formatted and shortened to fit, and documents without interactive fields
get the values drawn next to their printed labels.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch format {
			case "text":
			case "json":
				e.json = true
			default:
				return fmt.Errorf("unknown format %q (use text or json)", format)
			}

			cfg, err := config.LoadFromFlagSet(cmd.Flags())
			if err != nil {
				return err
			}
			if _, set := os.LookupEnv("MCP_PDF_FILL_LOGLEVEL"); !set && !cmd.Flags().Changed("loglevel") {
				cfg.LogLevel = quietLogLevel
			}
			logger, err := app.NewLogger(cfg)
			if err != nil {
				return err
			}
			e.cfg, e.logger = cfg, logger
			e.engine = app.NewEngine(cfg, logger)
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}

	config.RegisterFlags(root.PersistentFlags())
	root.PersistentFlags().StringVar(&format, "format", "text", "Output format: text or json")

	root.AddCommand(newFieldsCmd(e), newPreviewCmd(e), newFillCmd(e), newFitCmd(e))
	return root
}

func newFieldsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "fields <template.pdf>",
		Short: "List the fillable fields of a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			template, err := readFile(args[0], e.cfg.MaxFileSize)
			if err != nil {
				return err
			}
			sch, err := e.engine.Fields(cmd.Context(), template)
			if err != nil {
				return err
			}
			if e.json {
				return writeJSON(cmd.OutOrStdout(), sch)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d page(s), %d field(s)", args[0], sch.TotalPages, len(sch.Fields))
			if sch.IsXFA {
				fmt.Fprint(out, ", XFA")
			}
			if sch.IsScanned {
				fmt.Fprint(out, ", scanned")
			}
			fmt.Fprintln(out)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tPURPOSE\tLABEL\tPAGE\tMAX\tOPTIONS")
			for _, f := range sch.Fields {
				maxLen := "-"
				if f.Constraints.MaxLength > 0 {
					maxLen = strconv.Itoa(f.Constraints.MaxLength)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n", f.ID, f.Kind, f.Purpose, f.Label,
					f.Position.Page+1, maxLen, strings.Join(f.Options, "|"))
			}
			return tw.Flush()
		},
	}
}

func newPreviewCmd(e *env) *cobra.Command {
	var dataFile string
	cmd := &cobra.Command{
		Use:   "preview <template.pdf>",
		Short: "Show how data would be placed without writing a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			template, err := readFile(args[0], e.cfg.MaxFileSize)
			if err != nil {
				return err
			}
			data, err := readData(cmd.InOrStdin(), dataFile)
			if err != nil {
				return err
			}
			entries, err := e.engine.Preview(cmd.Context(), template, data, e.cfg.FitText)
			if err != nil {
				return err
			}
			if e.json {
				return writeJSON(cmd.OutOrStdout(), entries)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tFIELD\tMATCH\tMETHOD\tVALUE\tNOTE")
			for _, en := range entries {
				note := en.Error
				if note == "" && en.FitResult != nil && en.FitResult.Modified() {
					note = "shortened: " + en.FitResult.Strategy
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", en.Key, orDash(en.MatchedField),
					orDash(string(en.MatchStrategy)), en.Method, en.Value, note)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&dataFile, "data", "d", "", "JSON object of field values ('-' for stdin)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newFillCmd(e *env) *cobra.Command {
	var (
		dataFile string
		output   string
		flatten  bool
	)
	cmd := &cobra.Command{
		Use:   "fill <template.pdf>",
		Short: "Fill a form and write the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readData(cmd.InOrStdin(), dataFile)
			if err != nil {
				return err
			}
			if output == "" {
				base := filepath.Base(args[0])
				output = filepath.Join(e.cfg.OutputDirectory, strings.TrimSuffix(base, filepath.Ext(base))+"-filled.pdf")
			}

			doc := e.engine.Fill(cmd.Context(), filler.Request{
				TemplatePath: args[0],
				Data:         data,
				Flatten:      flatten,
				FitText:      e.cfg.FitText,
				OutputPath:   output,
			})

			out := cmd.OutOrStdout()
			if e.json {
				if err := writeJSON(out, doc); err != nil {
					return err
				}
			} else {
				printFill(out, doc)
			}
			if !doc.Success {
				return errors.New(strings.Join(doc.Errors, "; "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dataFile, "data", "d", "", "JSON object of field values ('-' for stdin)")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (default <outdir>/<template>-filled.pdf)")
	cmd.Flags().BoolVar(&flatten, "flatten", false, "Remove interactive widgets from the output")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newFitCmd(e *env) *cobra.Command {
	var (
		maxChars   int
		hint       fitter.Hint
		noTruncate bool
	)
	cmd := &cobra.Command{
		Use:   "fit <text>",
		Short: "Shorten text to a character budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxChars <= 0 {
				return errors.New("--max must be positive")
			}
			hint.NoTruncation = noTruncate
			res := app.NewFitter(e.cfg, e.logger).Fit(cmd.Context(), args[0], maxChars, hint)

			if e.json {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Fitted)
			fmt.Fprintf(cmd.ErrOrStderr(), "strategy=%s score=%.2f truncated=%t\n", res.Strategy, res.Score, res.Truncated)
			return nil
		},
	}
	cmd.Flags().IntVarP(&maxChars, "max", "m", 0, "Maximum number of characters")
	cmd.Flags().StringVar(&hint.Label, "label", "", "Field label")
	cmd.Flags().StringVar(&hint.FieldType, "type", "", "Field type, e.g. address")
	cmd.Flags().StringVar(&hint.Purpose, "purpose", "", "Field purpose, e.g. address")
	cmd.Flags().BoolVar(&noTruncate, "no-truncate", false, "Hard cut and flag overflow instead of adding an ellipsis")
	_ = cmd.MarkFlagRequired("max")
	return cmd
}

func printFill(w io.Writer, doc *filler.FilledDocument) {
	if doc.Success {
		fmt.Fprintf(w, "filled %s (%d filled, %d failed)\n", doc.OutputPath, doc.FieldsFilled(), doc.FieldsFailed())
	} else {
		fmt.Fprintf(w, "fill failed (request %s)\n", doc.RequestID)
	}
	for _, r := range doc.FieldResults {
		if r.Success {
			fmt.Fprintf(w, "  ok    %s -> %s [%s] %q\n", r.FieldName, r.MatchedField, r.Method, r.FilledValue)
		} else {
			fmt.Fprintf(w, "  fail  %s: %s\n", r.FieldName, r.Error)
		}
	}
	for _, warn := range doc.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

func readFile(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if limit > 0 && info.Size() > limit {
		return nil, fmt.Errorf("%s is too large: %d bytes (max %d)", path, info.Size(), limit)
	}
	return os.ReadFile(path)
}

// readData parses a JSON object of field values. Non-string values are
// rendered as their JSON text; null becomes an empty value.
func readData(stdin io.Reader, path string) (map[string]string, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("data must be a JSON object: %w", err)
	}

	data := make(map[string]string, len(obj))
	for k, v := range obj {
		var s string
		switch {
		case string(v) == "null":
		case json.Unmarshal(v, &s) == nil:
		default:
			s = string(v)
		}
		data[k] = s
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
