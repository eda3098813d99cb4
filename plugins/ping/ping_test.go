package ping

import (
	"context"
	"reflect"
	"testing"
)

func TestPong(t *testing.T) {
	t.Parallel()

	m := New()
	if _, ok := m.Capabilities().Match("/ping"); !ok {
		t.Fatal("/ping does not match")
	}
	if got := m.Trigger(context.Background(), "/ping"); !reflect.DeepEqual(got, []string{"pong"}) {
		t.Fatalf("Trigger = %v, want [pong]", got)
	}
}
