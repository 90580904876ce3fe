package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-recognizer/internal/matcher"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORE_BACKEND", "STORE_PATH", "STORE_DIMENSION", "STORE_DISCARD_CORRUPT",
		"MATCH_METRIC", "MATCH_THRESHOLD",
		"EXTRACTOR_URL", "EXTRACTOR_TIMEOUT", "EXTRACTOR_MIN_DET_SCORE", "EXTRACTOR_CONCURRENCY",
		"DATABASE_URL", "DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
		"BACKUP_ENDPOINT", "BACKUP_BUCKET", "BACKUP_ACCESS_KEY", "BACKUP_SECRET_KEY",
		"BACKUP_USE_SSL", "BACKUP_PREFIX",
		"WEB_HOST", "WEB_PORT", "WEB_ALLOWED_ORIGINS",
	} {
		// Setenv registers the restore; Unsetenv makes the default apply.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Backend != BackendFile {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, BackendFile)
	}
	if cfg.Store.Path != "face_database.parquet" {
		t.Errorf("Store.Path = %q, want face_database.parquet", cfg.Store.Path)
	}
	if cfg.Match.Metric != "cosine" {
		t.Errorf("Match.Metric = %q, want cosine", cfg.Match.Metric)
	}
	if got := cfg.Threshold(); got != 0.35 {
		t.Errorf("Threshold() = %v, want 0.35", got)
	}
	if cfg.Extractor.Timeout != 60*time.Second {
		t.Errorf("Extractor.Timeout = %v, want 60s", cfg.Extractor.Timeout)
	}
	if cfg.Extractor.Concurrency != 4 {
		t.Errorf("Extractor.Concurrency = %d, want 4", cfg.Extractor.Concurrency)
	}
	if cfg.Web.Port != 8000 {
		t.Errorf("Web.Port = %d, want 8000", cfg.Web.Port)
	}
	if cfg.Backup.Enabled() {
		t.Error("backup should be disabled without an endpoint")
	}
	if cfg.Defaults.Compare.SamePerson != 0.6 || cfg.Defaults.Compare.PossibleMatch != 0.4 {
		t.Errorf("compare bands = %+v, want 0.6/0.4", cfg.Defaults.Compare)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_PATH", "/data/faces.parquet")
	t.Setenv("STORE_DIMENSION", "512")
	t.Setenv("STORE_DISCARD_CORRUPT", "true")
	t.Setenv("MATCH_METRIC", "Euclidean")
	t.Setenv("EXTRACTOR_URL", "http://embed:8000")
	t.Setenv("EXTRACTOR_MIN_DET_SCORE", "0.7")
	t.Setenv("BACKUP_ENDPOINT", "minio:9000")
	t.Setenv("BACKUP_USE_SSL", "false")
	t.Setenv("WEB_ALLOWED_ORIGINS", "http://a.example,http://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Path != "/data/faces.parquet" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Store.Dimension != 512 {
		t.Errorf("Store.Dimension = %d, want 512", cfg.Store.Dimension)
	}
	if !cfg.Store.DiscardCorrupt {
		t.Error("Store.DiscardCorrupt should be true")
	}
	if cfg.Match.Metric != "euclidean" {
		t.Errorf("Match.Metric = %q, want euclidean", cfg.Match.Metric)
	}
	if got := cfg.Threshold(); got != 1.1 {
		t.Errorf("Threshold() = %v, want euclidean default 1.1", got)
	}
	if cfg.Extractor.URL != "http://embed:8000" {
		t.Errorf("Extractor.URL = %q", cfg.Extractor.URL)
	}
	if cfg.Extractor.MinDetScore != 0.7 {
		t.Errorf("Extractor.MinDetScore = %v, want 0.7", cfg.Extractor.MinDetScore)
	}
	if !cfg.Backup.Enabled() || cfg.Backup.UseSSL {
		t.Errorf("Backup = %+v, want enabled without SSL", cfg.Backup)
	}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("Web.AllowedOrigins = %v", cfg.Web.AllowedOrigins)
	}
}

func TestLoad_ExplicitThreshold(t *testing.T) {
	clearEnv(t)
	t.Setenv("MATCH_THRESHOLD", "0.42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Threshold(); got != 0.42 {
		t.Errorf("Threshold() = %v, want 0.42", got)
	}
}

func TestLoad_ThresholdEdges(t *testing.T) {
	tests := []struct {
		name   string
		metric string
		value  string
		want   float64
	}{
		{"explicit zero euclidean", "euclidean", "0", 0},
		{"explicit zero cosine", "cosine", "0", 0},
		{"negative cosine", "cosine", "-0.2", -0.2},
		{"cosine lower bound", "cosine", "-1", -1},
		{"cosine upper bound", "cosine", "1", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("MATCH_METRIC", tt.metric)
			t.Setenv("MATCH_THRESHOLD", tt.value)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.Match.Threshold == nil {
				t.Fatal("Match.Threshold should be set")
			}
			if got := cfg.Threshold(); got != tt.want {
				t.Errorf("Threshold() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoad_UnsetThresholdIsNil(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Match.Threshold != nil {
		t.Errorf("Match.Threshold = %v, want nil", *cfg.Match.Threshold)
	}
}

func TestBuiltin_MatchesLoadedDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Defaults != Builtin() {
		t.Errorf("Defaults = %+v, want %+v", cfg.Defaults, Builtin())
	}
	if got := Builtin().Threshold(matcher.Euclidean); got != 1.1 {
		t.Errorf("Builtin().Threshold(euclidean) = %v, want 1.1", got)
	}
	if got := Builtin().Threshold(matcher.Cosine); got != 0.35 {
		t.Errorf("Builtin().Threshold(cosine) = %v, want 0.35", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown backend", map[string]string{"STORE_BACKEND": "redis"}, "STORE_BACKEND"},
		{"postgres without url", map[string]string{"STORE_BACKEND": "postgres"}, "DATABASE_URL"},
		{"unknown metric", map[string]string{"MATCH_METRIC": "manhattan"}, "MATCH_METRIC"},
		{"cosine threshold above one", map[string]string{"MATCH_THRESHOLD": "1.2"}, "MATCH_THRESHOLD"},
		{"cosine threshold below minus one", map[string]string{"MATCH_THRESHOLD": "-1.5"}, "MATCH_THRESHOLD"},
		{"negative euclidean threshold", map[string]string{"MATCH_METRIC": "euclidean", "MATCH_THRESHOLD": "-0.1"}, "MATCH_THRESHOLD"},
		{"non-numeric threshold", map[string]string{"MATCH_THRESHOLD": "high"}, "MATCH"},
		{"bad dimension", map[string]string{"STORE_DIMENSION": "abc"}, "STORE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_ClampsConcurrency(t *testing.T) {
	cfg := &Config{
		Store: StoreConfig{Backend: "FILE", Path: "x.parquet"},
		Match: MatchConfig{Metric: "cosine"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Extractor.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", cfg.Extractor.Concurrency)
	}
	if cfg.Store.Backend != BackendFile {
		t.Errorf("Backend = %q, want normalized %q", cfg.Store.Backend, BackendFile)
	}
}
