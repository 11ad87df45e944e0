package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"syncgate/config"
	"syncgate/internal/storage"
)

func TestNewWiresAndShutsDown(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","results":[1]}`))
	}))
	defer remote.Close()

	cfg := config.Default()
	cfg.Storage.Type = storage.TypeMemory
	cfg.Remote.URL = remote.URL
	cfg.Metrics.Enabled = false

	application, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	// The prober has not run yet, so the app starts offline and a write is
	// captured for deferred replay.
	result, err := application.Gateway().Execute(context.Background(), "INSERT INTO orders VALUES (1)", nil)
	if err != nil {
		t.Fatalf("execute through wired gateway: %v", err)
	}
	if result.Status != "queued" || result.OperationID == "" {
		t.Errorf("expected queued acknowledgement, got %+v", result)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	// A second shutdown is a no-op.
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("repeated shutdown: %v", err)
	}
}

func TestNewRequiresRemoteURL(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Type = storage.TypeMemory
	cfg.Metrics.Enabled = false

	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for missing remote URL")
	}
}

func TestNewSplitStorageTypes(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","results":[1]}`))
	}))
	defer remote.Close()

	cfg := config.Default()
	cfg.Storage.Type = storage.TypeSQLite
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "syncgate.db")
	cfg.Storage.QueueType = storage.TypeMemory
	cfg.Remote.URL = remote.URL
	cfg.Metrics.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	application, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("new app with split storage types: %v", err)
	}

	// A write captured offline lands in the memory-backed queue while the
	// cache rides the sqlite connection.
	result, err := application.Gateway().Execute(context.Background(), "INSERT INTO orders VALUES (1)", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != "queued" || result.OperationID == "" {
		t.Errorf("expected queued acknowledgement, got %+v", result)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
