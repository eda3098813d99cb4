package router

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"richard/internal/bot"
	logx "richard/pkg/logx"
)

type replyFunc func(text string) []string

type target struct {
	bot.Base
	name  string
	caps  bot.Capabilities
	reply replyFunc
	calls []string
}

func (m *target) Name() string                   { return m.name }
func (m *target) Capabilities() bot.Capabilities { return m.caps }

func (m *target) Trigger(_ context.Context, text string) []string {
	m.calls = append(m.calls, text)
	return m.reply(text)
}

type chat struct {
	bot.Base
	name    string
	pending []bot.MessageCtx

	mu      sync.Mutex
	replies []string
}

func (c *chat) Name() string { return c.name }

func (c *chat) Capabilities() bot.Capabilities {
	return bot.Capabilities{ReadMessage: true, RespMessage: true, SendMessage: true}
}

func (c *chat) ReadMessages(context.Context) []bot.MessageCtx {
	out := c.pending
	c.pending = nil
	return out
}

func (c *chat) Respond(_ context.Context, parent bot.MessageCtx, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, parent.ID+"|"+msg)
}

func newRouter(t *testing.T, mods ...bot.Module) *Router {
	t.Helper()
	r := New(Options{Log: logx.Nop()})
	reg := bot.NewRegistry()
	all := append([]bot.Module{r}, mods...)
	for _, m := range all {
		if _, err := reg.Add(m); err != nil {
			t.Fatalf("Add(%s): %v", m.Name(), err)
		}
	}
	r.OnRegistry(context.Background(), reg.Snapshot())
	return r
}

func TestPingOrFallback(t *testing.T) {
	t.Parallel()

	a := &target{name: "ping", caps: bot.Capabilities{Triggers: []string{"/ping"}}, reply: func(string) []string { return []string{"pong"} }}
	b := &target{name: "ollama", caps: bot.Capabilities{CatchNonTriggered: true}, reply: func(s string) []string { return []string{"fallback:" + s} }}
	c := &chat{name: "webex", pending: []bot.MessageCtx{{Text: "/ping", ID: "m1"}, {Text: "hello", ID: "m2"}}}
	r := newRouter(t, a, b, c)

	r.Run(context.Background(), 0)

	want := []string{"m1|pong", "m2|fallback:hello"}
	if !reflect.DeepEqual(c.replies, want) {
		t.Fatalf("replies = %v, want %v", c.replies, want)
	}
	if !reflect.DeepEqual(a.calls, []string{"/ping"}) {
		t.Fatalf("ping calls = %v, want [/ping]", a.calls)
	}
	if !reflect.DeepEqual(b.calls, []string{"hello"}) {
		t.Fatalf("fallback calls = %v, want [hello]", b.calls)
	}
}

func TestDispatchTiers(t *testing.T) {
	t.Parallel()

	echo := func(tag string) replyFunc { return func(string) []string { return []string{tag} } }
	all := &target{name: "audit", caps: bot.Capabilities{CatchAll: true}, reply: echo("all")}
	status1 := &target{name: "endpoints", caps: bot.Capabilities{Triggers: []string{"/status"}}, reply: echo("s1")}
	status2 := &target{name: "down_detectors", caps: bot.Capabilities{Triggers: []string{"/status", "/stat"}}, reply: echo("s2")}
	fallback := &target{name: "ollama", caps: bot.Capabilities{CatchNonTriggered: true}, reply: echo("fb")}
	silent := &target{name: "quiet", reply: echo("never")}

	r := newRouter(t, all, status1, status2, fallback, silent)

	tests := []struct {
		text string
		want []string
	}{
		{"/status please", []string{"all", "s1", "s2"}},
		{"what is up", []string{"all", "fb"}},
	}
	for _, tt := range tests {
		got := r.Dispatch(context.Background(), bot.MessageCtx{Text: tt.text})
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("Dispatch(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
	if len(status2.calls) != 1 {
		t.Fatalf("multi-trigger module invoked %d times, want 1", len(status2.calls))
	}
	if len(silent.calls) != 0 {
		t.Fatal("non-routable module was invoked")
	}
	if got := r.Targets(); !reflect.DeepEqual(got, []string{"audit", "endpoints", "down_detectors", "ollama"}) {
		t.Fatalf("Targets = %v", got)
	}
}

func TestUnmatchedWithoutFallbackIsDropped(t *testing.T) {
	t.Parallel()

	a := &target{name: "ping", caps: bot.Capabilities{Triggers: []string{"/ping"}}, reply: func(string) []string { return []string{"pong"} }}
	c := &chat{name: "webex", pending: []bot.MessageCtx{{Text: "PING", ID: "m1"}}}
	r := newRouter(t, a, c)

	r.Run(context.Background(), 0)
	if len(c.replies) != 0 || len(a.calls) != 0 {
		t.Fatalf("replies = %v calls = %v, want none", c.replies, a.calls)
	}
}

func TestPanickingTargetApologizes(t *testing.T) {
	t.Parallel()

	boom := &target{name: "roll", caps: bot.Capabilities{Triggers: []string{"/roll"}}, reply: func(string) []string { panic("bad dice") }}
	ok := &target{name: "help", caps: bot.Capabilities{Triggers: []string{"/roll"}}, reply: func(string) []string { return []string{"usage"} }}
	c := &chat{name: "webex", pending: []bot.MessageCtx{{Text: "/roll 1d0", ID: "m9"}}}
	r := newRouter(t, boom, ok, c)

	r.Run(context.Background(), 0)

	want := []string{"m9|" + Apology, "m9|usage"}
	if !reflect.DeepEqual(c.replies, want) {
		t.Fatalf("replies = %v, want %v", c.replies, want)
	}
}

func TestRepliesGoToOriginatingChat(t *testing.T) {
	t.Parallel()

	a := &target{name: "ping", caps: bot.Capabilities{Triggers: []string{"/ping"}}, reply: func(string) []string { return []string{"pong"} }}
	webex := &chat{name: "webex", pending: []bot.MessageCtx{{Text: "/ping", ID: "w"}}}
	tg := &chat{name: "telegram"}
	r := newRouter(t, a, webex, tg)

	r.Run(context.Background(), 0)

	if len(webex.replies) != 1 || !strings.HasPrefix(webex.replies[0], "w|") {
		t.Fatalf("webex replies = %v", webex.replies)
	}
	if len(tg.replies) != 0 {
		t.Fatalf("telegram replies = %v, want none", tg.replies)
	}
}

func TestPollCadence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		opts Options
		want time.Duration
	}{
		{Options{}, DefaultEvery},
		{Options{Every: time.Second}, time.Second},
		{Options{Every: time.Second, Poll: bot.Every("x", time.Minute)}, time.Minute},
	}
	for _, tt := range tests {
		v := New(tt.opts).Variations()
		if len(v) != 1 || v[0].Every != tt.want || v[0].Name != "poll" {
			t.Fatalf("Variations = %+v, want poll every %v", v, tt.want)
		}
	}
}
