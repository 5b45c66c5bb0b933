package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "ESSAYMARK"

// DefaultFiller is inserted into any empty section, so it must read
// naturally under every header.
const DefaultFiller = "暂无。"

// legacyEnv maps config keys to the variable names used by earlier
// deployments of the grading job. They are consulted after the prefixed name.
var legacyEnv = map[string]string{
	"lark.app_id":       "APP_ID",
	"lark.app_secret":   "APP_SECRET",
	"lark.app_token":    "APP_TOKEN",
	"lark.table_id":     "TABLE_ID",
	"inference.api_key": "AI_API_KEY",
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the config file.
// An empty path looks for essaymark.{yaml,toml,json} in the working directory
// and silently continues when none exists.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		envName := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, legacy); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("essaymark")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// ValidateFields re-checks the named fields of cfg, given as
// "Group.Field", after they were changed following Load.
func ValidateFields(cfg *Config, fields ...string) error {
	if err := validator.New().StructPartial(cfg, fields...); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}

// setDefaults registers a default for every key so that environment
// overrides are visible to Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("store.backend", StoreBackendLark)
	v.SetDefault("store.page_size", 100)
	v.SetDefault("store.status_field", "单选")
	v.SetDefault("store.pending_value", "未完成")
	v.SetDefault("store.done_value", "已完成")
	v.SetDefault("store.result_field", "评语")
	v.SetDefault("store.attachment_field", "上传作文图片")
	v.SetDefault("store.label_field", "学生姓名")

	v.SetDefault("lark.app_id", "")
	v.SetDefault("lark.app_secret", "")
	v.SetDefault("lark.app_token", "")
	v.SetDefault("lark.table_id", "")
	v.SetDefault("lark.base_url", "")

	v.SetDefault("database.url", "")

	v.SetDefault("inference.backend", InferenceBackendOpenAI)
	v.SetDefault("inference.endpoint", "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions")
	v.SetDefault("inference.api_key", "")
	v.SetDefault("inference.model", "gemini-2.5-flash")
	v.SetDefault("inference.temperature", 0.2)
	v.SetDefault("inference.timeout", "60s")
	v.SetDefault("inference.max_attempts", 3)
	v.SetDefault("inference.backoff_base", "5s")
	v.SetDefault("inference.network_retry_delay", "3s")
	v.SetDefault("inference.instruction_path", "")

	v.SetDefault("image.max_side", 1024)
	v.SetDefault("image.jpeg_quality", 60)

	v.SetDefault("sanitizer.connectors", []string{"应改为", "should become"})
	v.SetDefault("sanitizer.section_header_pattern", `^\s*[一二三四五六七八九十]+、`)
	v.SetDefault("sanitizer.filler", DefaultFiller)
	v.SetDefault("sanitizer.denylist", []map[string]string{
		{"from": "ー", "to": "一"},
		{"from": "—", "to": "一"},
		{"from": "-", "to": "一"},
		{"from": "及和", "to": "和"},
		{"from": "京", "to": "就"},
		{"from": "尤", "to": "就"},
		{"from": "京尤", "to": "就"},
	})

	v.SetDefault("run.item_delay", "5s")
	v.SetDefault("run.concurrency", 1)
	v.SetDefault("run.dry_run", false)

	v.SetDefault("reset.batch_size", 100)
	v.SetDefault("reset.batch_delay", "1s")
}
