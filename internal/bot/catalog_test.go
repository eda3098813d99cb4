package bot

import (
	"errors"
	"strings"
	"testing"
	"time"

	logx "richard/pkg/logx"
)

func TestParseCadence(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local)
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"10s", 10 * time.Second},
		{"every:2h30m", 150 * time.Minute},
		{"00:50", 50 * time.Minute},
		{"168:00", 168 * time.Hour},
		{"0 9 * * *", time.Hour},
		{"cron:30 8 * * *", 30 * time.Minute},
		{"@every 55m", 55 * time.Minute},
	}
	for _, tt := range tests {
		v, err := ParseCadence("x", tt.raw)
		if err != nil {
			t.Fatalf("ParseCadence(%q): %v", tt.raw, err)
		}
		if got := v.Wait(now); got != tt.want {
			t.Fatalf("ParseCadence(%q).Wait = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseCadenceRejects(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "soon", "-5s", "0s", "01:99", "cron:", "cron:61 * * * *"} {
		if _, err := ParseCadence("x", raw); err == nil {
			t.Fatalf("ParseCadence(%q) = nil error", raw)
		}
	}
}

func TestEnableKey(t *testing.T) {
	t.Parallel()

	if got := EnableKey("github_repos"); got != "BOT_MODULE_GITHUB_REPOS_ENABLED" {
		t.Fatalf("EnableKey = %q", got)
	}
}

func TestWriteParamsDoc(t *testing.T) {
	t.Parallel()

	factories := []Factory{
		{Name: "ping"},
		{Name: "ollama", Params: []Param{
			{Name: "OLLAMA_URL", Description: "Ollama API base URL", Mandatory: true},
			{Name: "OLLAMA_MODEL", Description: "Model name", Mandatory: false},
			{Name: "OLLAMA_URL", Description: "dup", Mandatory: false},
		}},
	}
	var b strings.Builder
	if err := WriteParamsDoc(&b, factories); err != nil {
		t.Fatalf("WriteParamsDoc: %v", err)
	}
	want := "# 'ping' module parameters\n" +
		"- BOT_MODULE_PING_ENABLED: enable module ping (mandatory: false)\n" +
		"\n" +
		"# 'ollama' module parameters\n" +
		"- BOT_MODULE_OLLAMA_ENABLED: enable module ollama (mandatory: false)\n" +
		"- OLLAMA_URL: Ollama API base URL (mandatory: true)\n" +
		"- OLLAMA_MODEL: Model name (mandatory: false)\n" +
		"\n"
	if got := b.String(); got != want {
		t.Fatalf("doc =\n%s\nwant\n%s", got, want)
	}
}

func TestRegisterSkipsDisabledAndMisconfigured(t *testing.T) {
	t.Setenv("BOT_MODULE_GOOD_ENABLED", "true")
	t.Setenv("BOT_MODULE_NEEDY_ENABLED", "1")
	t.Setenv("BOT_MODULE_BROKEN_ENABLED", "true")
	t.Setenv("BOT_MODULE_OFF_ENABLED", "false")
	t.Setenv("NEEDY_TOKEN", "")

	built := map[string]int{}
	factory := func(name string, params []Param, err error) Factory {
		return Factory{Name: name, Params: params, New: func(Deps) (Module, error) {
			built[name]++
			if err != nil {
				return nil, err
			}
			return &fakeModule{name: name}, nil
		}}
	}
	reg := Register([]Factory{
		factory("good", nil, nil),
		factory("needy", []Param{{Name: "NEEDY_TOKEN", Mandatory: true}}, nil),
		factory("broken", nil, errors.New("bad url")),
		factory("off", nil, nil),
		factory("good", nil, nil),
	}, Deps{Log: logx.Nop()})

	entries := reg.Snapshot()
	if len(entries) != 1 || entries[0].Name != "good" {
		t.Fatalf("registered = %v, want [good]", entries)
	}
	if built["needy"] != 0 || built["off"] != 0 {
		t.Fatalf("constructors called for skipped modules: %v", built)
	}
	if built["broken"] != 1 {
		t.Fatalf("broken constructor calls = %d, want 1", built["broken"])
	}
}

func TestCheckParams(t *testing.T) {
	t.Setenv("CHECK_PARAMS_SET", "x")

	ok := []Param{{Name: "CHECK_PARAMS_SET", Mandatory: true}, {Name: "CHECK_PARAMS_UNSET"}}
	if err := CheckParams(ok); err != nil {
		t.Fatalf("CheckParams = %v", err)
	}
	missing := []Param{{Name: "CHECK_PARAMS_UNSET", Mandatory: true}}
	if err := CheckParams(missing); !errors.Is(err, ErrMissingParam) {
		t.Fatalf("CheckParams = %v, want ErrMissingParam", err)
	}
}
