package config

import (
	"testing"

	"github.com/preflab/pairwise/internal/study"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PAIRWISE_TRIALS", "PAIRWISE_METRICS", "PAIRWISE_EXPORT_TOKEN", "PAIRWISE_EXPORT_TOKEN_HASH", "PAIRWISE_CHECK_FILES"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NTrials != 10 {
		t.Fatalf("default trials = %d, want 10", cfg.NTrials)
	}
	if len(cfg.Metrics) != 4 || cfg.Metrics[0].Key != "metric_a" {
		t.Fatalf("default metrics wrong: %v", cfg.Metrics)
	}
	if cfg.ExportConfigured() {
		t.Fatal("export must not be configured by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PAIRWISE_TRIALS", "3")
	t.Setenv("PAIRWISE_METRICS", `[{"key":"pref","name":"Preference"}]`)
	t.Setenv("PAIRWISE_DEMOGRAPHICS", "age, vision ,")
	t.Setenv("PAIRWISE_EXPORT_TOKEN", "s3cret")
	t.Setenv("PAIRWISE_CHECK_FILES", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NTrials != 3 {
		t.Fatalf("trials = %d", cfg.NTrials)
	}
	if len(cfg.Metrics) != 1 || cfg.Metrics[0].Key != "pref" {
		t.Fatalf("metrics = %v", cfg.Metrics)
	}
	if len(cfg.Demographics) != 2 || cfg.Demographics[0] != "age" || cfg.Demographics[1] != "vision" {
		t.Fatalf("demographics = %v", cfg.Demographics)
	}
	if !cfg.CheckFiles || !cfg.ExportConfigured() {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PAIRWISE_TRIALS", "zero")
	if _, err := Load(); !study.IsCode(err, study.ErrorConfig) {
		t.Fatalf("bad trials: want config error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{NTrials: 5, SessionSecret: "k", Metrics: DefaultMetrics}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	c := base()
	c.NTrials = 0
	if err := c.Validate(); !study.IsCode(err, study.ErrorConfig) {
		t.Fatalf("zero trials accepted: %v", err)
	}

	c = base()
	c.Metrics = nil
	if err := c.Validate(); !study.IsCode(err, study.ErrorConfig) {
		t.Fatalf("empty metrics accepted: %v", err)
	}

	c = base()
	c.Metrics = []study.Metric{{Key: "a", Name: "A"}, {Key: "a", Name: "Again"}}
	if err := c.Validate(); !study.IsCode(err, study.ErrorConfig) {
		t.Fatalf("duplicate metric accepted: %v", err)
	}

	c = base()
	c.SessionSecret = " "
	if err := c.Validate(); !study.IsCode(err, study.ErrorConfig) {
		t.Fatalf("blank secret accepted: %v", err)
	}
}
