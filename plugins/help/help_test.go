package help

import (
	"context"
	"testing"

	"richard/internal/bot"
	"richard/plugins/ping"
)

func TestHelpListsPeerTriggers(t *testing.T) {
	t.Parallel()

	reg := bot.NewRegistry()
	h := New()
	for _, m := range []bot.Module{ping.New(), h} {
		if _, err := reg.Add(m); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	h.OnRegistry(context.Background(), reg.Snapshot())

	got := h.Trigger(context.Background(), "/help")
	want := "Available commands are:\n- /help\n- /ping\n"
	if len(got) != 1 || got[0] != want {
		t.Fatalf("Trigger = %q, want %q", got, want)
	}
}
