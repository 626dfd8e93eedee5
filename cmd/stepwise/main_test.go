package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/stepwise/internal/config"
	"github.com/ShayCichocki/stepwise/internal/llm"
	"github.com/ShayCichocki/stepwise/internal/orchestrator"
	"github.com/ShayCichocki/stepwise/pkg/models"
)

func TestConfigKeys_AllReadable(t *testing.T) {
	cfg := config.Default()
	for _, key := range configKeys {
		if _, err := getConfigValue(cfg, key); err != nil {
			t.Errorf("getConfigValue(%q) error: %v", key, err)
		}
	}
}

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		want    string
		wantErr bool
	}{
		{"llm.provider", "ollama", "ollama", false},
		{"llm.max_tokens", "2048", "2048", false},
		{"llm.max_tokens", "lots", "", true},
		{"llm.timeout", "45s", "45s", false},
		{"llm.timeout", "soon", "", true},
		{"llm.bedrock.enabled", "true", "true", false},
		{"orchestrator.max_turns", "12", "12", false},
		{"orchestrator.result_limit", "x", "", true},
		{"orchestrator.on_redecompose", "reject", "reject", false},
		{"state.enabled", "maybe", "", true},
		{"tools", "fetch, time,,", "fetch,time", false},
		{"no.such.key", "1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := config.Default()
			err := setConfigValue(cfg, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("setConfigValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			got, err := getConfigValue(cfg, tt.key)
			if err != nil {
				t.Fatalf("getConfigValue() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("after set, %s = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestGetConfigValue_MasksAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "sk-ant-REDACTED"

	got, err := getConfigValue(cfg, "llm.api_key")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "abcdefghijkl") {
		t.Errorf("API key not masked: %q", got)
	}
}

func TestUpdateGitignore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".gitignore")
	if err := os.WriteFile(path, []byte("bin/"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := updateGitignore(dir); err != nil {
		t.Fatalf("updateGitignore() error = %v", err)
	}
	// Second call must not duplicate entries.
	if err := updateGitignore(dir); err != nil {
		t.Fatalf("updateGitignore() second call error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "bin/\n") {
		t.Errorf("existing content not preserved: %q", content)
	}
	for _, entry := range gitignoreEntries {
		if n := strings.Count(content, entry); n != 1 {
			t.Errorf("entry %q appears %d times", entry, n)
		}
	}
}

func TestCreateProjectConfig_DoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".stepwise.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  provider: ollama\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := createProjectConfig(dir); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "llm:\n  provider: ollama\n" {
		t.Errorf("existing project config was overwritten: %q", data)
	}
}

func TestProjectConfigTemplate_Loads(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("STEPWISE_LLM_API_KEY", "")

	dir := t.TempDir()
	if err := createProjectConfig(dir); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadFromPath(filepath.Join(dir, ".stepwise.yaml"))
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("template config invalid: %v", err)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
		{72 * time.Hour, "3d"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestTruncateGoal(t *testing.T) {
	if got := truncateGoal("short", 10); got != "short" {
		t.Errorf("truncateGoal() = %q", got)
	}
	if got := truncateGoal("开发一个完整的系统", 5); got != "开发一个…" {
		t.Errorf("truncateGoal() = %q", got)
	}
}

func TestRenderTasks(t *testing.T) {
	tasks := []models.Task{
		{ID: 1, Title: "Collect", Status: models.TaskStatusCompleted},
		{ID: 2, Title: "Report", Status: models.TaskStatusPending},
	}
	out := renderTasks(tasks, 2, true)
	if !strings.Contains(out, "Collect") || !strings.Contains(out, "▶") {
		t.Errorf("unexpected render:\n%s", out)
	}
	if out := renderTasks(nil, 0, false); !strings.Contains(out, "no task list") {
		t.Errorf("unexpected empty render: %q", out)
	}
}

func TestIsResumable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{context.Canceled, true},
		{orchestrator.ErrStopped, true},
		{fmt.Errorf("%w after 50 turns", orchestrator.ErrMaxTurns), true},
		{errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := isResumable(tt.err); got != tt.want {
			t.Errorf("isResumable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestWithTimeout(t *testing.T) {
	slow := llm.ResponderFunc(func(ctx context.Context, req llm.Request) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := withTimeout(slow, 10*time.Millisecond).Respond(context.Background(), llm.Request{Prompt: "hi"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	fast := llm.ResponderFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "ok", nil
	})
	if r := withTimeout(fast, 0); r == nil {
		t.Fatal("withTimeout(0) returned nil")
	}
}

func TestRunInit(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("STEPWISE_LLM_API_KEY", "")
	dir := filepath.Join(t.TempDir(), "project")

	initForce, initNoIgnore = false, false
	if err := runInit(initCmd, []string{dir}); err != nil {
		t.Fatalf("runInit() error = %v", err)
	}

	for _, p := range []string{
		".stepwise/signals",
		".stepwise/logs",
		".stepwise/state.db",
		".stepwise.yaml",
		".gitignore",
	} {
		if _, err := os.Stat(filepath.Join(dir, p)); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
}
