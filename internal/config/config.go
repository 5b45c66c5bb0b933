package config

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Store backends
const (
	StoreBackendLark     = "lark"
	StoreBackendPostgres = "postgres"
)

// Inference backends
const (
	InferenceBackendOpenAI = "openai"
	InferenceBackendGemini = "gemini"
)

// ErrMissingSetting is returned when a setting required by the selected
// backend is empty.
var ErrMissingSetting = errors.New("missing required setting")

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Log       LogConfig       `mapstructure:"log" validate:"required"`
	Store     StoreConfig     `mapstructure:"store" validate:"required"`
	Lark      LarkConfig      `mapstructure:"lark"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Inference InferenceConfig `mapstructure:"inference" validate:"required"`
	Image     ImageConfig     `mapstructure:"image" validate:"required"`
	Sanitizer SanitizerConfig `mapstructure:"sanitizer" validate:"required"`
	Run       RunConfig       `mapstructure:"run"`
	Reset     ResetConfig     `mapstructure:"reset"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// StoreConfig describes the record store and how work item fields map onto it.
type StoreConfig struct {
	Backend  string `mapstructure:"backend" validate:"required,oneof=lark postgres"`
	PageSize int    `mapstructure:"page_size" validate:"gt=0,lte=500"`

	StatusField     string `mapstructure:"status_field" validate:"required"`
	PendingValue    string `mapstructure:"pending_value" validate:"required"`
	DoneValue       string `mapstructure:"done_value" validate:"required,nefield=PendingValue"`
	ResultField     string `mapstructure:"result_field" validate:"required"`
	AttachmentField string `mapstructure:"attachment_field" validate:"required"`
	LabelField      string `mapstructure:"label_field"`
}

// LarkConfig contains Lark/Feishu open platform credentials and the table
// holding the work items.
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	AppToken  string `mapstructure:"app_token"`
	TableID   string `mapstructure:"table_id"`
	BaseURL   string `mapstructure:"base_url" validate:"omitempty,url"`
}

// DatabaseConfig contains settings for the PostgreSQL store backend.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// InferenceConfig contains all settings of the generative inference service.
type InferenceConfig struct {
	Backend     string  `mapstructure:"backend" validate:"required,oneof=openai gemini"`
	Endpoint    string  `mapstructure:"endpoint" validate:"omitempty,url"`
	APIKey      string  `mapstructure:"api_key" validate:"required"`
	Model       string  `mapstructure:"model" validate:"required"`
	Temperature float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`

	// Timeout bounds a single attempt.
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	BackoffBase       time.Duration `mapstructure:"backoff_base" validate:"gte=0"`
	NetworkRetryDelay time.Duration `mapstructure:"network_retry_delay" validate:"gte=0"`

	// InstructionPath points at a text/template file with the instruction
	// sent with every item. Empty selects the built-in instruction.
	InstructionPath string `mapstructure:"instruction_path"`
}

// ImageConfig contains image normalization settings.
type ImageConfig struct {
	MaxSide     int `mapstructure:"max_side" validate:"gte=16,lte=8192"`
	JPEGQuality int `mapstructure:"jpeg_quality" validate:"gte=1,lte=100"`
}

// DenyPair is a known false-positive correction emitted by the generator.
type DenyPair struct {
	From string `mapstructure:"from" validate:"required"`
	To   string `mapstructure:"to"`
}

// SanitizerConfig contains the output post-processing rules.
type SanitizerConfig struct {
	Connectors           []string   `mapstructure:"connectors" validate:"required,min=1,dive,required"`
	SectionHeaderPattern string     `mapstructure:"section_header_pattern" validate:"required"`
	Filler               string     `mapstructure:"filler" validate:"required"`
	Denylist             []DenyPair `mapstructure:"denylist" validate:"dive"`
}

// RunConfig contains batch run settings.
type RunConfig struct {
	ItemDelay   time.Duration `mapstructure:"item_delay" validate:"gte=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"gte=1,lte=16"`
	DryRun      bool          `mapstructure:"dry_run"`
}

// ResetConfig contains settings of the bulk reset utility.
type ResetConfig struct {
	BatchSize  int           `mapstructure:"batch_size" validate:"gte=1,lte=100"`
	BatchDelay time.Duration `mapstructure:"batch_delay" validate:"gte=0"`
}

// Validate checks the settings that depend on the selected backends.
// Struct-level constraints are enforced by the validator in Load.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendLark:
		required := []struct{ key, value string }{
			{"lark.app_id", c.Lark.AppID},
			{"lark.app_secret", c.Lark.AppSecret},
			{"lark.app_token", c.Lark.AppToken},
			{"lark.table_id", c.Lark.TableID},
		}
		for _, r := range required {
			if r.value == "" {
				return fmt.Errorf("%w: %s (store backend %q)", ErrMissingSetting, r.key, c.Store.Backend)
			}
		}
	case StoreBackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("%w: database.url (store backend %q)", ErrMissingSetting, c.Store.Backend)
		}
	}

	if c.Inference.Backend == InferenceBackendOpenAI && c.Inference.Endpoint == "" {
		return fmt.Errorf("%w: inference.endpoint (inference backend %q)", ErrMissingSetting, c.Inference.Backend)
	}

	if _, err := regexp.Compile(c.Sanitizer.SectionHeaderPattern); err != nil {
		return fmt.Errorf("sanitizer.section_header_pattern: %w", err)
	}

	return nil
}
