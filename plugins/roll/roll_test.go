package roll

import (
	"context"
	"strings"
	"testing"

	logx "richard/pkg/logx"
)

func fixed(m *Module) *Module {
	m.intn = func(n int) int { return n - 1 }
	return m
}

func TestRoll(t *testing.T) {
	t.Parallel()

	m := fixed(New(logx.Nop()))
	tests := []struct {
		in   string
		want string
	}{
		{"/roll 1d20", "roll 1d20: 20"},
		{"/roll 3d6", "roll 3d6: (6+6+6) = 18"},
		{"hey /roll 2d4 1d8", "roll 2d4: (4+4) = 8\nroll 1d8: 8"},
		{"/roll 100d2", "roll 100d2: 200"},
		{"/roll", Usage},
		{"/roll 0d6", Usage},
		{"/roll 1d1001", Usage},
		{"/roll 2x6", Usage},
		{"/roll 1d6 nope", Usage},
	}
	for _, tt := range tests {
		got := m.Trigger(context.Background(), tt.in)
		if len(got) != 1 || got[0] != tt.want {
			t.Fatalf("Trigger(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRollStaysInRange(t *testing.T) {
	t.Parallel()

	m := New(logx.Nop())
	for i := 0; i < 200; i++ {
		got := m.Trigger(context.Background(), "/roll 1d6")[0]
		v := strings.TrimPrefix(got, "roll 1d6: ")
		if len(v) != 1 || v[0] < '1' || v[0] > '6' {
			t.Fatalf("roll = %q, out of 1..6", got)
		}
	}
}
