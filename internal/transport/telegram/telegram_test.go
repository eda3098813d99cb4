package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	tele "gopkg.in/telebot.v4"

	"richard/internal/bot"
	logx "richard/pkg/logx"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []map[string]any
	commands []tele.Command
	// rejectMarkdown makes sendMessage fail when a parse mode is set.
	rejectMarkdown bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	switch {
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if f.rejectMarkdown && body["parse_mode"] != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`))
			return
		}
		f.sent = append(f.sent, body)
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":123,"type":"group"}}}`))
	case strings.HasSuffix(r.URL.Path, "/setMyCommands"):
		raw, _ := json.Marshal(body["commands"])
		switch v := body["commands"].(type) {
		case string:
			raw = []byte(v)
		}
		_ = json.Unmarshal(raw, &f.commands)
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	default:
		http.NotFound(w, r)
	}
}

func newModule(t *testing.T, cfg Config) (*Module, *fakeAPI) {
	t.Helper()
	f := &fakeAPI{}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	cfg.Token = "tok"
	cfg.APIURL = srv.URL
	cfg.Offline = true
	cfg.RatePerSec = 0
	if cfg.ChatID == 0 {
		cfg.ChatID = 123
	}
	m, err := New(cfg, bot.Deps{Log: logx.Nop(), HTTP: srv.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, f
}

func TestReceiveRewritesMenuCommands(t *testing.T) {
	t.Parallel()

	m, f := newModule(t, Config{})
	peers := []bot.Entry{
		{Name: "ping", Capabilities: bot.Capabilities{Triggers: []string{"/ping"}}},
		{Name: "outscale_api_versions", Capabilities: bot.Capabilities{Triggers: []string{"/oapi-versions"}}},
		{Name: "odd", Capabilities: bot.Capabilities{Triggers: []string{"status"}}},
	}
	m.OnRegistry(context.Background(), peers)

	m.receive(&tele.Message{ID: 7, Chat: &tele.Chat{ID: 123}, Text: "/oapi_versions@richard_bot now"})
	m.receive(&tele.Message{ID: 8, Chat: &tele.Chat{ID: 999}, Text: "/ping"})
	m.receive(&tele.Message{ID: 9, Chat: &tele.Chat{ID: 123}, ThreadID: 4, Text: "/ping"})

	want := []bot.MessageCtx{{Text: "/oapi-versions now", ID: "123:7"}, {Text: "/ping", ID: "123:9:4"}}
	if got := m.ReadMessages(context.Background()); !reflect.DeepEqual(got, want) {
		t.Fatalf("ReadMessages = %v, want %v", got, want)
	}
	if got := m.ReadMessages(context.Background()); len(got) != 0 {
		t.Fatalf("second ReadMessages = %v", got)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, c := range f.commands {
		names = append(names, c.Text)
	}
	if !reflect.DeepEqual(names, []string{"oapi_versions", "ping"}) {
		t.Fatalf("commands = %v", names)
	}
}

func TestRespondRepliesInThread(t *testing.T) {
	t.Parallel()

	m, f := newModule(t, Config{})
	m.Respond(context.Background(), bot.MessageCtx{ID: "123:42:5"}, "pong")

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) != 1 {
		t.Fatalf("sent = %v", f.sent)
	}
	got := f.sent[0]
	if got["text"] != "pong" || got["chat_id"] != "123" || got["message_thread_id"] != "5" {
		t.Fatalf("sendMessage = %v", got)
	}
	raw, _ := json.Marshal(got)
	if !strings.Contains(string(raw), "42") {
		t.Fatalf("sendMessage does not reply to 42: %s", raw)
	}
}

func TestSendFallsBackToPlainText(t *testing.T) {
	t.Parallel()

	m, f := newModule(t, Config{ThreadID: 3})
	f.mu.Lock()
	f.rejectMarkdown = true
	f.mu.Unlock()
	m.SendMessages(context.Background(), []string{"down_detectors: [x](y"})

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) != 1 || f.sent[0]["parse_mode"] != nil {
		t.Fatalf("sent = %v", f.sent)
	}
}

func TestCorrelationRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		chat        int64
		msg, thread int
		want        string
	}{
		{-100123, 5, 0, "-100123:5"},
		{42, 1, 9, "42:1:9"},
	}
	for _, tt := range tests {
		id := correlation(tt.chat, tt.msg, tt.thread)
		if id != tt.want {
			t.Fatalf("correlation = %q, want %q", id, tt.want)
		}
		c, m, th, err := parseCorrelation(id)
		if err != nil || c != tt.chat || m != tt.msg || th != tt.thread {
			t.Fatalf("parseCorrelation(%q) = %d %d %d %v", id, c, m, th, err)
		}
	}
	for _, bad := range []string{"", "1", "a:b", "1:2:3:4", "1:x"} {
		if _, _, _, err := parseCorrelation(bad); err == nil {
			t.Fatalf("parseCorrelation(%q) accepted", bad)
		}
	}
}

func TestSplitText(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 30) + "\n" + strings.Repeat("b", 30)
	got := splitText(long, 40)
	if !reflect.DeepEqual(got, []string{strings.Repeat("a", 30), strings.Repeat("b", 30)}) {
		t.Fatalf("splitText = %q", got)
	}
	if got := splitText("短い", 40); !reflect.DeepEqual(got, []string{"短い"}) {
		t.Fatalf("splitText short = %q", got)
	}
	for _, c := range splitText(strings.Repeat("é", 9000), textLimit) {
		if n := len([]rune(c)); n > textLimit {
			t.Fatalf("chunk of %d runes", n)
		}
	}
}

func TestCommandName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"/ping":          "ping",
		"/oapi-versions": "oapi_versions",
		"/Help Me":       "help_me",
		"/1up":           "cmd_1up",
		"/!!":            "",
	}
	for in, want := range tests {
		if got := commandName(in); got != want {
			t.Fatalf("commandName(%q) = %q, want %q", in, got, want)
		}
	}
}
