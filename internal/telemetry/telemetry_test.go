package telemetry

import (
	"context"
	"testing"

	"richard/internal/config"
)

func TestSetupDisabledIsNoop(t *testing.T) {
	t.Parallel()

	for _, cfg := range []config.TelemetryConfig{
		{},
		{Enabled: true},
		{Endpoint: "http://127.0.0.1:4318"},
	} {
		shutdown, err := Setup(context.Background(), cfg, "test")
		if err != nil {
			t.Fatalf("Setup(%+v): %v", cfg, err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}
}
