package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
csv_path: /data/trips.csv
email_dir: /data/emails
extract:
  model: gpt-4o-mini
  batch_size: 4
window:
  lookback_months: 6
`)

	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.CSVPath.Value != "/data/trips.csv" || cfg.CSVPath.Source != SourceConfig {
		t.Errorf("CSVPath = %+v", cfg.CSVPath)
	}
	if cfg.Model.Value != "gpt-4o-mini" {
		t.Errorf("Model = %+v", cfg.Model)
	}
	if cfg.BatchSize.Int(8) != 4 {
		t.Errorf("BatchSize = %+v", cfg.BatchSize)
	}
	if cfg.LookbackMonths.Int(12) != 6 {
		t.Errorf("LookbackMonths = %+v", cfg.LookbackMonths)
	}
}

func TestResolveConfigMissingFile(t *testing.T) {
	cfg, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
	})
	if err != nil {
		t.Fatalf("missing config file should not error: %v", err)
	}
	if cfg.CSVPath.Value != "" {
		t.Errorf("CSVPath = %+v", cfg.CSVPath)
	}
}

func TestResolveConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "csv_path: /from/file.csv\n")
	t.Setenv("TRIPSTITCH_CSV", "/from/env.csv")

	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CSVPath.Value != "/from/env.csv" || cfg.CSVPath.Source != SourceEnv {
		t.Errorf("CSVPath = %+v", cfg.CSVPath)
	}
	if cfg.CSVPath.From != "TRIPSTITCH_CSV" {
		t.Errorf("From = %q", cfg.CSVPath.From)
	}
}

func TestResolveConfigCLIOverridesEnv(t *testing.T) {
	t.Setenv("TRIPSTITCH_CSV", "/from/env.csv")

	cfg, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
		CLICSVPath: "/from/cli.csv",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CSVPath.Value != "/from/cli.csv" || cfg.CSVPath.Source != SourceCLI {
		t.Errorf("CSVPath = %+v", cfg.CSVPath)
	}
}

func TestResolveConfigAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey.Value != "sk-test" || cfg.APIKey.Source != SourceEnv {
		t.Errorf("APIKey source = %+v", cfg.APIKey.Source)
	}
}

func TestDescribeNeverPrintsAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-secret-value")

	cfg, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "absent.yaml"),
	})
	if err != nil {
		t.Fatal(err)
	}
	out := cfg.Describe()
	if strings.Contains(out, "sk-secret-value") {
		t.Errorf("Describe leaked the API key")
	}
	if !strings.Contains(out, "api key") {
		t.Errorf("Describe missing api key presence line:\n%s", out)
	}
}

func TestResolvedValueInt(t *testing.T) {
	tests := []struct {
		value    string
		fallback int
		want     int
	}{
		{"4", 8, 4},
		{"", 8, 8},
		{"nope", 8, 8},
		{" 12 ", 8, 12},
	}
	for _, tt := range tests {
		v := ResolvedValue{Value: tt.value}
		if got := v.Int(tt.fallback); got != tt.want {
			t.Errorf("Int(%q, %d) = %d, want %d", tt.value, tt.fallback, got, tt.want)
		}
	}
}
