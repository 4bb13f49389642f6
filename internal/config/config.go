// Package config collects every runtime setting into one validated struct.
// Values come from PAIRWISE_* environment variables; the server entry point
// loads a .env file first so local setups need no shell exports.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/preflab/pairwise/internal/study"
)

// DefaultMetrics are the rating dimensions collected per trial unless
// PAIRWISE_METRICS overrides them.
var DefaultMetrics = []study.Metric{
	{Key: "metric_a", Name: "Visual Quality and Realism", Desc: "How natural and visually convincing the clip looks."},
	{Key: "metric_b", Name: "Temporal Consistency", Desc: "How stable the clip is over time, without flicker or drift."},
	{Key: "metric_c", Name: "Controllability", Desc: "How well the clip follows the intended content."},
	{Key: "metric_d", Name: "Overall Quality Score", Desc: "Overall impression of the clip."},
}

type Config struct {
	Addr         string
	ManifestPath string
	StaticDir    string
	DBPath       string

	// SessionSecret signs the session cookie. It must stay stable across
	// restarts or every participant cookie becomes invalid.
	SessionSecret string

	// Export access: either the plaintext token or a bcrypt hash of it.
	// When both are empty the export endpoint refuses every request.
	ExportToken     string
	ExportTokenHash string

	NTrials      int
	Metrics      []study.Metric
	Demographics []string

	// CheckFiles makes startup verify every manifest video exists on disk.
	CheckFiles bool
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// Load builds the configuration from the environment and validates it.
// Configuration problems surface here, at startup, never per-request.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:            envOr("PAIRWISE_ADDR", ":8080"),
		ManifestPath:    envOr("PAIRWISE_MANIFEST", "manifest.json"),
		StaticDir:       envOr("PAIRWISE_STATIC_DIR", "static"),
		DBPath:          envOr("PAIRWISE_DB", "results.sqlite3"),
		SessionSecret:   envOr("PAIRWISE_SESSION_SECRET", "pairwise-dev-secret"),
		ExportToken:     os.Getenv("PAIRWISE_EXPORT_TOKEN"),
		ExportTokenHash: os.Getenv("PAIRWISE_EXPORT_TOKEN_HASH"),
		Metrics:         DefaultMetrics,
	}

	n, err := strconv.Atoi(envOr("PAIRWISE_TRIALS", "10"))
	if err != nil {
		return nil, study.NewConfigError(fmt.Sprintf("PAIRWISE_TRIALS: %v", err))
	}
	cfg.NTrials = n

	if raw := os.Getenv("PAIRWISE_METRICS"); raw != "" {
		var metrics []study.Metric
		if err := json.Unmarshal([]byte(raw), &metrics); err != nil {
			return nil, study.NewConfigError(fmt.Sprintf("PAIRWISE_METRICS: %v", err))
		}
		cfg.Metrics = metrics
	}

	if raw := os.Getenv("PAIRWISE_DEMOGRAPHICS"); raw != "" {
		for _, key := range strings.Split(raw, ",") {
			key = strings.TrimSpace(key)
			if key != "" {
				cfg.Demographics = append(cfg.Demographics, key)
			}
		}
	}

	if v := os.Getenv("PAIRWISE_CHECK_FILES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, study.NewConfigError(fmt.Sprintf("PAIRWISE_CHECK_FILES: %v", err))
		}
		cfg.CheckFiles = b
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the structural rules the rest of the app assumes.
func (c *Config) Validate() error {
	if c.NTrials <= 0 {
		return study.NewConfigError(fmt.Sprintf("trial count must be positive, got %d", c.NTrials))
	}
	if strings.TrimSpace(c.SessionSecret) == "" {
		return study.NewConfigError("session secret must not be empty")
	}
	if len(c.Metrics) == 0 {
		return study.NewConfigError("at least one metric must be configured")
	}
	seen := map[string]bool{}
	for _, m := range c.Metrics {
		if strings.TrimSpace(m.Key) == "" {
			return study.NewConfigError("metric with empty key")
		}
		if seen[m.Key] {
			return study.NewConfigError(fmt.Sprintf("duplicate metric key %q", m.Key))
		}
		seen[m.Key] = true
	}
	return nil
}

// ExportConfigured reports whether any export credential is set.
func (c *Config) ExportConfigured() bool {
	return c.ExportToken != "" || c.ExportTokenHash != ""
}
