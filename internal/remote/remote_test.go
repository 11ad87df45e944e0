package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"syncgate/internal/core"
)

func TestExecuteSuccess(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req executeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		gotQuery = req.Query
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","results":[{"id":1}],"metrics":{"elapsed_ms":4}}`))
	}))
	defer server.Close()

	exec, err := NewHTTPExecutor(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	result, err := exec.Execute(context.Background(), "FOR o IN orders RETURN o")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotQuery != "FOR o IN orders RETURN o" {
		t.Errorf("query sent = %q", gotQuery)
	}
	if !result.Accepted() {
		t.Errorf("expected accepted result, got status %q", result.Status)
	}
	if string(result.Results) != `[{"id":1}]` {
		t.Errorf("results = %s", result.Results)
	}
	if string(result.Metrics) != `{"elapsed_ms":4}` {
		t.Errorf("metrics = %s", result.Metrics)
	}
}

func TestExecuteRejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","results":null}`))
	}))
	defer server.Close()

	exec, err := NewHTTPExecutor(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	result, err := exec.Execute(context.Background(), "INSERT INTO t VALUES (1)")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Accepted() {
		t.Fatal("error status must not count as acceptance")
	}
}

func TestExecuteHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	exec, err := NewHTTPExecutor(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	_, err = exec.Execute(context.Background(), "FOR o IN orders RETURN o")
	if !core.IsKind(err, core.KindRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestExecuteTransportError(t *testing.T) {
	exec, err := NewHTTPExecutor(Config{URL: "http://127.0.0.1:1/query"})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	_, err = exec.Execute(context.Background(), "FOR o IN orders RETURN o")
	if !core.IsKind(err, core.KindRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestExecuteInvalidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	exec, err := NewHTTPExecutor(Config{URL: server.URL})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	_, err = exec.Execute(context.Background(), "FOR o IN orders RETURN o")
	if !core.IsKind(err, core.KindRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestExecuteValidation(t *testing.T) {
	if _, err := NewHTTPExecutor(Config{}); !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected validation error for missing URL, got %v", err)
	}

	exec, err := NewHTTPExecutor(Config{URL: "http://localhost:9"})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	if _, err := exec.Execute(context.Background(), ""); !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected validation error for empty query, got %v", err)
	}
}
