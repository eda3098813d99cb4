package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"richard/internal/bot"
	"richard/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "richard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func enable(t *testing.T, names ...string) {
	t.Helper()
	for _, n := range names {
		t.Setenv(bot.EnableKey(n), "true")
	}
}

const quietConfig = `
logging:
  level: ERROR
  console: false
`

func TestCatalogOrder(t *testing.T) {
	var got []string
	seen := map[string]bool{}
	for _, f := range Catalog() {
		if seen[f.Name] {
			t.Fatalf("duplicate factory %q", f.Name)
		}
		seen[f.Name] = true
		got = append(got, f.Name)
	}
	want := []string{
		"webex", "ping", "help", "down_detectors", "github_orgs", "github_repos", "triggers",
		"hello", "ollama", "feeds", "roll", "webpages", "outscale_api_versions", "telegram", "endpoints",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Catalog = %v, want %v", got, want)
	}
}

func TestNewAppRegistersEnabledModules(t *testing.T) {
	enable(t, "roll", "triggers", "ping", "help")
	// mandatory params missing: logged and skipped
	enable(t, "feeds")
	t.Setenv("BOT_MODULE_HELLO_ENABLED", "yes")

	a, err := NewApp(Options{ConfigPath: writeConfig(t, quietConfig)})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	want := []string{"ping", "help", "triggers", "roll"}
	if got := a.Modules(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Modules = %v, want %v", got, want)
	}
}

func TestNewAppRejectsBadConfig(t *testing.T) {
	_, err := NewApp(Options{ConfigPath: writeConfig(t, "scheduler:\n  router_every: soon\n")})
	if err == nil {
		t.Fatal("NewApp accepted an invalid router cadence")
	}
}

func TestRunReportsCollapsedWorkers(t *testing.T) {
	// ping has no variations, so no worker ever starts
	enable(t, "ping")

	a, err := NewApp(Options{ConfigPath: writeConfig(t, quietConfig)})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Run(ctx); !errors.Is(err, bot.ErrWorkersCollapsed) {
		t.Fatalf("Run = %v, want %v", err, bot.ErrWorkersCollapsed)
	}
}

func TestRunWithoutModules(t *testing.T) {
	a, err := NewApp(Options{ConfigPath: writeConfig(t, quietConfig), Factories: []bot.Factory{}})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if err := a.Run(context.Background()); !errors.Is(err, bot.ErrNoModules) {
		t.Fatalf("Run = %v, want %v", err, bot.ErrNoModules)
	}
}

func TestRunServesMetricsUntilCanceled(t *testing.T) {
	enable(t, "triggers", "ping")

	a, err := NewApp(Options{ConfigPath: writeConfig(t, quietConfig+`
metrics:
  enabled: true
  addr: 127.0.0.1:0
`)})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for a.MetricsAddr() == "" {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("metrics listener never bound")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get("http://" + a.MetricsAddr() + "/metrics")
	if err != nil {
		cancel()
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "go_goroutines") {
		cancel()
		t.Fatalf("GET /metrics = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if a.MetricsAddr() != "" {
		t.Fatal("metrics listener still bound after stop")
	}
}

func TestRouterFactoryCadence(t *testing.T) {
	f := routerFactory()
	tests := []struct {
		raw      string
		wantErr  bool
		schedule bool
		every    time.Duration
	}{
		{"", false, false, 10 * time.Second},
		{"30s", false, false, 30 * time.Second},
		{"@every 1m", false, true, 0},
		{"not a cadence", true, false, 0},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.Scheduler.RouterEvery = tt.raw
		m, err := f.New(bot.Deps{Config: cfg, Observer: bot.NopObserver{}})
		if (err != nil) != tt.wantErr {
			t.Fatalf("New(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if err != nil {
			continue
		}
		v := m.Variations()[0]
		if (v.Schedule != nil) != tt.schedule || (!tt.schedule && v.Every != tt.every) {
			t.Fatalf("New(%q) variation = %+v", tt.raw, v)
		}
	}
}
