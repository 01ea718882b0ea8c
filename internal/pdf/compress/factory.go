package compress

import (
	"context"
	"fmt"
	"strings"
)

// Providers understood by Factory
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Settings selects and configures a model backend
type Settings struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// Factory returns a constructor for the configured backend, suitable for NewLazy
func Factory(s Settings) func() (Compressor, error) {
	return func() (Compressor, error) {
		switch strings.ToLower(s.Provider) {
		case "", ProviderNone:
			return Noop{}, nil
		case ProviderOpenAI:
			model := s.Model
			if model == "" {
				model = "gpt-4o-mini"
			}
			return NewOpenAI(s.BaseURL, s.APIKey, model), nil
		case ProviderGemini:
			model := s.Model
			if model == "" {
				model = "gemini-1.5-flash"
			}
			return NewGemini(context.Background(), s.APIKey, model)
		default:
			return nil, fmt.Errorf("unknown compressor provider %q", s.Provider)
		}
	}
}
