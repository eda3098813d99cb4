package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"

	logx "richard/pkg/logx"
)

const rss = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>blog</title>
<item><guid>old</guid><title>Old</title><link>https://example.com/old</link><pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate></item>
%s
</channel></rss>`

const fresh = `<item><guid>new</guid><title>Fresh</title><link>https://example.com/new</link><pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate></item>`

func TestFeedsAnnounceOnlyChanges(t *testing.T) {
	t.Parallel()

	var extra atomic.Value
	extra.Store("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, rss, extra.Load().(string))
	}))
	defer srv.Close()

	m, err := New([]string{"blog"}, []string{srv.URL}, srv.Client(), logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if got := m.Run(ctx, 0); len(got) != 0 {
		t.Fatalf("first Run = %v, want nothing", got)
	}
	if got := m.Run(ctx, 0); len(got) != 0 {
		t.Fatalf("unchanged Run = %v, want nothing", got)
	}
	extra.Store(fresh)
	want := []string{"blog: [Fresh](https://example.com/new)"}
	if got := m.Run(ctx, 0); !reflect.DeepEqual(got, want) {
		t.Fatalf("Run = %v, want %v", got, want)
	}
	if got := m.Run(ctx, 0); len(got) != 0 {
		t.Fatalf("repeat Run = %v, want nothing", got)
	}
}

func TestEntryAnnounce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		e    Entry
		want string
	}{
		{Entry{Title: "T", URL: "u"}, "blog: [T](u)"},
		{Entry{Title: "T"}, "New post on blog: T"},
		{Entry{URL: "u"}, "New post on [blog](u)"},
		{Entry{}, "New post on blog"},
	}
	for _, tt := range tests {
		if got := tt.e.announce("blog"); got != tt.want {
			t.Fatalf("announce(%+v) = %q, want %q", tt.e, got, tt.want)
		}
	}
}

func TestNewRequiresFeeds(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil, http.DefaultClient, logx.Nop()); err != ErrNoFeeds {
		t.Fatalf("New = %v, want ErrNoFeeds", err)
	}
}
