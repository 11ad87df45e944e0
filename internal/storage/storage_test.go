package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	st, err := Open(context.Background(), Config{Type: TypeMemory})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	defer st.Close()

	if st.Type() != TypeMemory {
		t.Fatalf("type = %q, want %q", st.Type(), TypeMemory)
	}
	if st.SQLiteDB() != nil || st.PostgreSQLPool() != nil || st.MongoDatabase() != nil || st.RedisClient() != nil {
		t.Fatal("memory storage should expose no backend handles")
	}
}

func TestOpenSQLite(t *testing.T) {
	st, err := Open(context.Background(), Config{
		Type:   TypeSQLite,
		SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "syncgate.db")},
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer st.Close()

	if st.SQLiteDB() == nil {
		t.Fatal("sqlite storage should expose a *sql.DB")
	}
	if err := st.SQLiteDB().Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenUnknownType(t *testing.T) {
	if _, err := Open(context.Background(), Config{Type: "etcd"}); err == nil {
		t.Fatal("expected error for unknown storage type")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Type != TypeSQLite {
		t.Fatalf("default type = %q, want sqlite", cfg.Type)
	}
	if cfg.SQLite.Path == "" {
		t.Fatal("default sqlite path empty")
	}
}
