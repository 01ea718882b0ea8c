package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the closed set of failure categories produced by the fill engine
type Kind int

const (
	KindUnknown Kind = iota
	KindParsing
	KindFilling
	KindValidation
	KindResource
	KindConfiguration
)

// Severity indicates whether a failure aborts a document or only a field
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// String returns a string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindParsing:
		return "PARSING"
	case KindFilling:
		return "FILLING"
	case KindValidation:
		return "VALIDATION"
	case KindResource:
		return "RESOURCE"
	case KindConfiguration:
		return "CONFIGURATION"
	default:
		return "UNKNOWN"
	}
}

// Severity returns the default severity for a kind. Per-field kinds are warnings.
func (k Kind) Severity() Severity {
	switch k {
	case KindFilling, KindValidation:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// FillError carries a message, structured details and an optional cause
type FillError struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

// Error implements the error interface
func (e *FillError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ", e.Kind)
	if e.Field != "" {
		fmt.Fprintf(&b, "%s: ", e.Field)
	}
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Details[k]))
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap exposes the underlying cause
func (e *FillError) Unwrap() error {
	return e.Cause
}

// Is matches any FillError of the same kind when the target carries no message,
// so errors.Is(err, ErrValidation) works for every validation failure.
func (e *FillError) Is(target error) bool {
	t, ok := target.(*FillError)
	if !ok {
		return false
	}
	if t.Message == "" {
		return t.Kind == e.Kind
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// Sentinels for errors.Is comparisons by kind.
var (
	ErrParsing       = &FillError{Kind: KindParsing}
	ErrFilling       = &FillError{Kind: KindFilling}
	ErrValidation    = &FillError{Kind: KindValidation}
	ErrResource      = &FillError{Kind: KindResource}
	ErrConfiguration = &FillError{Kind: KindConfiguration}
)

// New creates a FillError of the given kind
func New(kind Kind, message string) *FillError {
	return &FillError{Kind: kind, Message: message}
}

// Newf creates a FillError with a formatted message
func Newf(kind Kind, format string, args ...any) *FillError {
	return &FillError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err as a FillError. A nil err yields nil.
func Wrap(kind Kind, message string, err error) *FillError {
	if err == nil {
		return nil
	}
	return &FillError{Kind: kind, Message: message, Cause: err}
}

// WithField records the field the failure relates to
func (e *FillError) WithField(field string) *FillError {
	e.Field = field
	return e
}

// WithDetail attaches a structured detail
func (e *FillError) WithDetail(key string, value any) *FillError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// KindOf returns the kind of the first FillError in err's chain
func KindOf(err error) Kind {
	var fe *FillError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Collection gathers per-document warnings and errors
type Collection struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// NewCollection creates an empty collection
func NewCollection() *Collection {
	return &Collection{
		Errors:   make([]string, 0),
		Warnings: make([]string, 0),
	}
}

// Add files err under errors or warnings according to its kind's severity.
// Errors that are not FillErrors count as errors.
func (c *Collection) Add(err error) {
	if err == nil {
		return
	}
	if KindOf(err).Severity() == SeverityWarning {
		c.Warnings = append(c.Warnings, err.Error())
		return
	}
	c.Errors = append(c.Errors, err.Error())
}

// Warn records a free-form warning
func (c *Collection) Warn(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any document-level error was recorded
func (c *Collection) HasErrors() bool {
	return len(c.Errors) > 0
}

// Count returns the number of errors and warnings
func (c *Collection) Count() (errs, warnings int) {
	return len(c.Errors), len(c.Warnings)
}

// Summary returns a text summary of all errors and warnings
func (c *Collection) Summary() string {
	errorCount, warningCount := c.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}
	return fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)
}
