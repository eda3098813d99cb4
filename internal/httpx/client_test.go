package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoJSONRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "richard/test" {
			t.Errorf("User-Agent = %q, want richard/test", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["say"]})
	}))
	defer srv.Close()

	c := NewClient(time.Second, "richard/test")
	var out struct{ Echo string }
	err := DoJSON(context.Background(), c, http.MethodPost, srv.URL, http.Header{"Authorization": {"Bearer tok"}},
		map[string]string{"say": "hi"}, &out)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if out.Echo != "hi" {
		t.Fatalf("Echo = %q, want hi", out.Echo)
	}
}

func TestDoJSONStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := DoJSON(context.Background(), NewClient(time.Second, ""), http.MethodGet, srv.URL, nil, nil, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("DoJSON = %v, want *StatusError", err)
	}
	if se.Code != http.StatusServiceUnavailable || se.Body != "maintenance" {
		t.Fatalf("StatusError = %+v", se)
	}
}

func TestWithTimeoutKeepsTransport(t *testing.T) {
	t.Parallel()

	base := NewClient(time.Second, "x")
	long := WithTimeout(base, time.Minute)
	if long.Timeout != time.Minute || base.Timeout != time.Second {
		t.Fatalf("timeouts = %v/%v", long.Timeout, base.Timeout)
	}
	if long.Transport != base.Transport {
		t.Fatal("transport not shared")
	}
}
