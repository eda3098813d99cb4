package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"richard/internal/router"
	logx "richard/pkg/logx"
)

func TestOllamaKeepsContext(t *testing.T) {
	t.Parallel()

	var seen [][]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "llama3" || req.Stream {
			t.Errorf("request = %+v", req)
		}
		seen = append(seen, req.Context)
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "echo " + req.Prompt, Context: []int{len(seen)}})
	}))
	defer srv.Close()

	m := New(Config{Model: "llama3", URL: srv.URL + "/"}, srv.Client(), logx.Nop())
	if got := m.Trigger(context.Background(), "hi"); !reflect.DeepEqual(got, []string{"echo hi"}) {
		t.Fatalf("Trigger = %v", got)
	}
	m.Trigger(context.Background(), "again")
	if !reflect.DeepEqual(seen, [][]int{{}, {1}}) {
		t.Fatalf("contexts sent = %v", seen)
	}
}

func TestOllamaFailureApologizes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	m := New(Config{Model: "x", URL: srv.URL}, srv.Client(), logx.Nop())
	got := m.Trigger(context.Background(), "hi")
	if !reflect.DeepEqual(got, []string{router.Apology}) {
		t.Fatalf("Trigger = %v, want apology", got)
	}
}
