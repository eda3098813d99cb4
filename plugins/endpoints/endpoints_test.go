package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"richard/internal/bot"
	"richard/internal/liveness"
	logx "richard/pkg/logx"
)

type stateObserver struct {
	bot.NopObserver
	mu    sync.Mutex
	alive map[string]bool
}

func (o *stateObserver) TargetState(module, target string, alive bool, _ float64, _ bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.alive[module+"/"+target] = alive
}

func TestRegionGoesDownAndUp(t *testing.T) {
	t.Parallel()

	var code atomic.Int32
	code.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(code.Load()))
		fmt.Fprint(w, `{"Version":"1.0"}`)
	}))
	defer srv.Close()

	obs := &stateObserver{alive: map[string]bool{}}
	m := New([]string{"eu-west-2"}, []string{srv.URL}, srv.Client(), obs, logx.Nop())
	ctx := context.Background()

	var got []string
	code.Store(http.StatusServiceUnavailable)
	for i := 0; i < liveness.High; i++ {
		got = append(got, m.Run(ctx, 1)...)
	}
	want := []string{"eu-west-2 region: API has been very properly put in maintenance mode by the wonderful ops team, thanks for your understanding"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("down messages = %v, want %v", got, want)
	}
	if obs.alive["endpoints/eu-west-2"] {
		t.Fatal("observer still sees the region alive")
	}

	got = nil
	code.Store(http.StatusOK)
	for i := 0; i < liveness.High-liveness.Low; i++ {
		got = append(got, m.Run(ctx, 1)...)
	}
	if !reflect.DeepEqual(got, []string{"API on eu-west-2 region is up"}) {
		t.Fatalf("up messages = %v", got)
	}
}

func TestStatusAndVersion(t *testing.T) {
	t.Parallel()

	var version atomic.Value
	version.Store("1.0")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"Version":%q}`, version.Load().(string))
	}))
	defer srv.Close()

	m := New([]string{"us-east-2"}, []string{srv.URL}, srv.Client(), nil, logx.Nop())
	ctx := context.Background()

	if got := m.Trigger(ctx, "/status"); !reflect.DeepEqual(got, []string{"us-east-2: alive=true, version=unkown, error_rate=n/a\n"}) {
		t.Fatalf("status = %q", got)
	}
	if got := m.Run(ctx, 2); len(got) != 0 {
		t.Fatalf("first version Run = %v", got)
	}
	version.Store("1.1")
	if got := m.Run(ctx, 2); !reflect.DeepEqual(got, []string{"New API version on us-east-2: 1.1"}) {
		t.Fatalf("version Run = %v", got)
	}
	for i := 0; i < liveness.Window; i++ {
		m.Run(ctx, 0)
	}
	got := m.Trigger(ctx, "/status")
	if len(got) != 1 || !strings.HasSuffix(got[0], "version=1.1, error_rate=0%\n") {
		t.Fatalf("status = %q", got)
	}
}
