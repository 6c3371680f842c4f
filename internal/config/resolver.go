// Package config resolves settings from YAML file, environment, and
// CLI flags, tracking where each value came from. Precedence is
// config < env < CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// Int parses the value as an integer, falling back when empty or
// malformed.
func (v ResolvedValue) Int(fallback int) int {
	s := strings.TrimSpace(v.Value)
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// ResolveOptions carries CLI overrides into resolution.
type ResolveOptions struct {
	ConfigPath  string
	CLICSVPath  string
	CLIEmailDir string
	CLIVocab    string
	CLIDBPath   string
	CLIModel    string
	CLIEndpoint string
}

// ResolvedConfig is the fully resolved settings set. The API key is
// held as a value but never printed by any renderer.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	CSVPath  ResolvedValue `json:"csv_path"`
	EmailDir ResolvedValue `json:"email_dir"`
	Vocab    ResolvedValue `json:"vocab_path"`
	DBPath   ResolvedValue `json:"db_path"`

	Endpoint ResolvedValue `json:"endpoint"`
	Model    ResolvedValue `json:"model"`
	APIKey   ResolvedValue `json:"-"`

	BatchSize      ResolvedValue `json:"batch_size"`
	BodyBudget     ResolvedValue `json:"body_budget"`
	MaxRetries     ResolvedValue `json:"max_retries"`
	Concurrency    ResolvedValue `json:"concurrency"`
	LookbackMonths ResolvedValue `json:"lookback_months"`
	LookaheadDays  ResolvedValue `json:"lookahead_days"`
	InterBatchSecs ResolvedValue `json:"inter_batch_secs"`
	TimeoutSecs    ResolvedValue `json:"timeout_secs"`
}

type fileConfig struct {
	CSVPath  string `yaml:"csv_path"`
	EmailDir string `yaml:"email_dir"`
	Vocab    string `yaml:"vocab_path"`
	DBPath   string `yaml:"db_path"`
	Extract  struct {
		Endpoint       string `yaml:"endpoint"`
		Model          string `yaml:"model"`
		APIKey         string `yaml:"api_key"`
		BatchSize      int    `yaml:"batch_size"`
		BodyBudget     int    `yaml:"body_budget"`
		MaxRetries     int    `yaml:"max_retries"`
		Concurrency    int    `yaml:"concurrency"`
		InterBatchSecs int    `yaml:"inter_batch_secs"`
		TimeoutSecs    int    `yaml:"timeout_secs"`
	} `yaml:"extract"`
	Window struct {
		LookbackMonths int `yaml:"lookback_months"`
		LookaheadDays  int `yaml:"lookahead_days"`
	} `yaml:"window"`
}

// DefaultConfigPath is ~/.tripstitch/config.yaml.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tripstitch", "config.yaml")
}

// ResolveConfig loads the YAML file (missing file is not an error),
// layers environment variables on top, then CLI flags. A .env file in
// the working directory is loaded first so OPENAI_API_KEY can live
// there.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	// Silently absent .env is fine.
	_ = godotenv.Load()

	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.CSVPath, cfg.CSVPath, SourceConfig, path)
		apply(&out.EmailDir, cfg.EmailDir, SourceConfig, path)
		apply(&out.Vocab, cfg.Vocab, SourceConfig, path)
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Endpoint, cfg.Extract.Endpoint, SourceConfig, path)
		apply(&out.Model, cfg.Extract.Model, SourceConfig, path)
		applyInt(&out.BatchSize, cfg.Extract.BatchSize, SourceConfig, path)
		applyInt(&out.BodyBudget, cfg.Extract.BodyBudget, SourceConfig, path)
		applyInt(&out.MaxRetries, cfg.Extract.MaxRetries, SourceConfig, path)
		applyInt(&out.Concurrency, cfg.Extract.Concurrency, SourceConfig, path)
		applyInt(&out.InterBatchSecs, cfg.Extract.InterBatchSecs, SourceConfig, path)
		applyInt(&out.TimeoutSecs, cfg.Extract.TimeoutSecs, SourceConfig, path)
		applyInt(&out.LookbackMonths, cfg.Window.LookbackMonths, SourceConfig, path)
		applyInt(&out.LookaheadDays, cfg.Window.LookaheadDays, SourceConfig, path)

		if key := strings.TrimSpace(cfg.Extract.APIKey); key != "" {
			out.APIKey = ResolvedValue{Value: key, Source: SourceConfig, From: path}
		}
	}

	applyEnv(&out.CSVPath, "TRIPSTITCH_CSV")
	applyEnv(&out.EmailDir, "TRIPSTITCH_EMAIL_DIR")
	applyEnv(&out.Vocab, "TRIPSTITCH_VOCAB")
	applyEnv(&out.DBPath, "TRIPSTITCH_DB")
	applyEnv(&out.Endpoint, "TRIPSTITCH_ENDPOINT")
	applyEnv(&out.Model, "TRIPSTITCH_MODEL")
	applyEnv(&out.BatchSize, "TRIPSTITCH_BATCH_SIZE")
	applyEnv(&out.Concurrency, "TRIPSTITCH_CONCURRENCY")
	applyEnv(&out.LookbackMonths, "TRIPSTITCH_LOOKBACK_MONTHS")
	applyEnv(&out.LookaheadDays, "TRIPSTITCH_LOOKAHEAD_DAYS")

	for _, env := range []string{"TRIPSTITCH_API_KEY", "OPENAI_API_KEY", "OPEN_AI_KEY"} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			out.APIKey = ResolvedValue{Value: v, Source: SourceEnv, From: env}
			break
		}
	}

	apply(&out.CSVPath, opts.CLICSVPath, SourceCLI, "--csv")
	apply(&out.EmailDir, opts.CLIEmailDir, SourceCLI, "--emails")
	apply(&out.Vocab, opts.CLIVocab, SourceCLI, "--vocab")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Model, opts.CLIModel, SourceCLI, "--model")
	apply(&out.Endpoint, opts.CLIEndpoint, SourceCLI, "--endpoint")

	for _, v := range []*ResolvedValue{&out.CSVPath, &out.EmailDir, &out.Vocab, &out.DBPath} {
		if v.Value != "" {
			v.Value = expandUserPath(v.Value)
		}
	}

	return out, nil
}

// Describe renders resolved values with their sources for diagnostics.
// The API key is reported by presence only.
func (r ResolvedConfig) Describe() string {
	var b strings.Builder
	line := func(name string, v ResolvedValue) {
		if v.Value == "" {
			fmt.Fprintf(&b, "  %-16s (unset)\n", name)
			return
		}
		fmt.Fprintf(&b, "  %-16s %s (%s: %s)\n", name, v.Value, v.Source, v.From)
	}
	line("csv", r.CSVPath)
	line("emails", r.EmailDir)
	line("vocab", r.Vocab)
	line("db", r.DBPath)
	line("endpoint", r.Endpoint)
	line("model", r.Model)
	if r.APIKey.Value != "" {
		fmt.Fprintf(&b, "  %-16s set (%s: %s)\n", "api key", r.APIKey.Source, r.APIKey.From)
	} else {
		fmt.Fprintf(&b, "  %-16s (unset)\n", "api key")
	}
	return b.String()
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyInt(dst *ResolvedValue, raw int, source ValueSource, from string) {
	if raw <= 0 {
		return
	}
	*dst = ResolvedValue{Value: strconv.Itoa(raw), Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
