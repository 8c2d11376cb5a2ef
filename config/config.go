package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/promptline/engine"
	"github.com/hupe1980/promptline/logging"
	"github.com/hupe1980/promptline/model"
	"github.com/hupe1980/promptline/model/anthropic"
	"github.com/hupe1980/promptline/model/openai"
	"github.com/hupe1980/promptline/postprocess"
	"github.com/hupe1980/promptline/prompt"
	"gopkg.in/yaml.v3"
)

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// File is the YAML configuration of a promptline instance.
//
// Example:
//
//	instructions: You are a concise chess commentator.
//	temperature: 0.3
//	sampling:
//	  mode: top_p
//	  top_p: 0.9
//	context:
//	  heading: Player
//	  format: compact_sorted
//	post_processing:
//	  trim: true
//	  collapse_whitespace: true
//	  max_newlines: 2
//	  round_decimals: 0
//	model:
//	  provider: openai
//	  name: gpt-4o-mini
//	  api_key_env: OPENAI_API_KEY
//	logging:
//	  level: debug
//	  format: text
type File struct {
	Instructions   string                `yaml:"instructions"`
	Temperature    *float64              `yaml:"temperature"`
	MaxTokens      *int                  `yaml:"max_tokens"`
	MaxToolRounds  int                   `yaml:"max_tool_rounds"`
	Sampling       model.Sampling        `yaml:"sampling"`
	Context        prompt.ContextOptions `yaml:"context"`
	PostProcessing postprocess.Spec      `yaml:"post_processing"`
	Model          ModelConfig           `yaml:"model"`
	Logging        LoggingConfig         `yaml:"logging"`
}

// ModelConfig selects and configures a runtime adapter.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
	// APIKeyEnv names the environment variable holding the API key. When
	// empty the provider SDK's default variable is used.
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return f, nil
}

// Parse decodes and validates YAML configuration. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &f, nil
}

// Validate checks every section of the file.
func (f *File) Validate() error {
	var errs []error

	if f.Temperature != nil && *f.Temperature < 0 {
		errs = append(errs, fmt.Errorf("temperature must be >= 0, got %g", *f.Temperature))
	}

	if f.MaxTokens != nil && *f.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("max_tokens must be >= 1, got %d", *f.MaxTokens))
	}

	if f.MaxToolRounds < 0 {
		errs = append(errs, fmt.Errorf("max_tool_rounds must be >= 0, got %d", f.MaxToolRounds))
	}

	if err := f.Sampling.Validate(); err != nil {
		errs = append(errs, err)
	}

	if !f.Context.Format.Valid() {
		errs = append(errs, fmt.Errorf("unknown context format %q", f.Context.Format))
	}

	if err := f.PostProcessing.Validate(); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(f.Model.Provider) {
	case "", ProviderOpenAI, ProviderAnthropic, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown model provider %q", f.Model.Provider))
	}

	if _, err := logging.ParseLevel(f.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	switch f.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", f.Logging.Format))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// EngineConfig converts the file into an engine configuration bound to m.
func (f *File) EngineConfig(m model.Model) engine.Config {
	return engine.Config{
		Instructions:   f.Instructions,
		Model:          m,
		Temperature:    f.Temperature,
		MaxTokens:      f.MaxTokens,
		Sampling:       f.Sampling,
		Context:        f.Context,
		PostProcessing: f.PostProcessing,
		MaxToolRounds:  f.MaxToolRounds,
	}
}

// NewLogger builds the configured structured logger writing to out
// (stderr when nil).
func (f *File) NewLogger(out io.Writer) *logging.StructuredLogger {
	level, _ := logging.ParseLevel(f.Logging.Level)

	format := f.Logging.Format
	if format == "" {
		format = "json"
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    format,
		Output:    out,
		AddSource: f.Logging.AddSource,
		Component: "promptline",
	})
}

// BuildModel creates the runtime adapter named by the model section. It
// returns an error when no provider is configured.
func (f *File) BuildModel() (model.Model, error) {
	mc := f.Model

	apiKey := ""
	if mc.APIKeyEnv != "" {
		apiKey = os.Getenv(mc.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("config: environment variable %s is not set", mc.APIKeyEnv)
		}
	}

	switch strings.ToLower(mc.Provider) {
	case ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			o.APIKey = apiKey
			o.BaseURL = mc.BaseURL
			o.Temperature = f.Temperature
		}), nil
	case ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if mc.Name != "" {
				o.Model = anthropicsdk.Model(mc.Name)
			}
			o.APIKey = apiKey
			o.BaseURL = mc.BaseURL
			o.Temperature = f.Temperature
		}), nil
	case ProviderMock:
		name := mc.Name
		if name == "" {
			name = "mock"
		}
		return model.NewMockModel(name, ProviderMock), nil
	case "":
		return nil, errors.New("config: no model provider configured")
	default:
		return nil, fmt.Errorf("config: unknown model provider %q", mc.Provider)
	}
}
