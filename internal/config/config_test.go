package config

import (
	"os"
	"path/filepath"
	"testing"
)

// unsetForTest clears key for the duration of the test. t.Setenv restores
// the previous value on cleanup.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(cwd) }()

	d := t.TempDir()
	env := "MOCKSTREAM_RUNS_DSN=postgres://u:p@localhost:5432/mockstream?sslmode=disable\nMOCKSTREAM_LOG_LEVEL=debug\nMOCKSTREAM_TOPIC_TEMPLATE=mock.{name}\n"
	if err := os.WriteFile(filepath.Join(d, ".env"), []byte(env), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(d); err != nil {
		t.Fatal(err)
	}

	unsetForTest(t, "MOCKSTREAM_RUNS_DSN")
	unsetForTest(t, "MOCKSTREAM_LOG_LEVEL")
	unsetForTest(t, "MOCKSTREAM_TOPIC_TEMPLATE")
	t.Setenv("MOCKSTREAM_SINK", "stdout")

	cfg := Load()
	if cfg.RunsDSN != "postgres://u:p@localhost:5432/mockstream?sslmode=disable" {
		t.Fatalf("expected MOCKSTREAM_RUNS_DSN from .env, got %q", cfg.RunsDSN)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected MOCKSTREAM_LOG_LEVEL from .env, got %q", cfg.LogLevel)
	}
	if cfg.TopicTemplate != "mock.{name}" {
		t.Fatalf("expected topic template from .env, got %q", cfg.TopicTemplate)
	}
	if cfg.Sink != "stdout" {
		t.Fatalf("environment should win over defaults, got %q", cfg.Sink)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(cwd) }()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	for _, k := range []string{"MOCKSTREAM_SCHEMAS_DIR", "MOCKSTREAM_RUNS_DSN", "MOCKSTREAM_LOG_LEVEL",
		"MOCKSTREAM_BIND_ADDR", "MOCKSTREAM_NATS_URL", "MOCKSTREAM_TOPIC_TEMPLATE", "MOCKSTREAM_SINK"} {
		unsetForTest(t, k)
	}

	cfg := Load()
	if cfg.SchemasDir != "./schemas" || cfg.BindAddr != ":8080" || cfg.TopicTemplate != "{name}" || cfg.Sink != "nats" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
