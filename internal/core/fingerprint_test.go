package core

import (
	"strings"
	"testing"
)

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("orders", "SELECT * FROM orders WHERE id = $id", map[string]any{"id": 1, "limit": 10})
	b := Fingerprint("orders", "SELECT * FROM orders WHERE id = $id", map[string]any{"limit": 10, "id": 1})
	if a != b {
		t.Fatalf("param ordering changed key: %s vs %s", a, b)
	}
}

func TestFingerprintNormalizesWhitespace(t *testing.T) {
	a := Fingerprint("orders", "SELECT *\n  FROM orders", nil)
	b := Fingerprint("orders", "SELECT * FROM orders", nil)
	if a != b {
		t.Fatalf("whitespace changed key: %s vs %s", a, b)
	}
}

func TestFingerprintDistinguishes(t *testing.T) {
	cases := [][2]string{
		{Fingerprint("orders", "SELECT 1", nil), Fingerprint("orders", "SELECT 2", nil)},
		{Fingerprint("orders", "SELECT 1", nil), Fingerprint("users", "SELECT 1", nil)},
		{
			Fingerprint("orders", "SELECT 1", map[string]any{"a": 1}),
			Fingerprint("orders", "SELECT 1", map[string]any{"a": 2}),
		},
	}
	for i, c := range cases {
		if c[0] == c[1] {
			t.Errorf("case %d: distinct inputs mapped to same key %s", i, c[0])
		}
	}
}

func TestFingerprintCarriesNamespacePrefix(t *testing.T) {
	key := Fingerprint("orders", "SELECT 1", nil)
	if !strings.HasPrefix(key, "orders:") {
		t.Fatalf("key %q missing namespace prefix", key)
	}
}

func TestFingerprintNestedParams(t *testing.T) {
	a := Fingerprint("ns", "q", map[string]any{"f": map[string]any{"x": 1, "y": []any{1, 2}}})
	b := Fingerprint("ns", "q", map[string]any{"f": map[string]any{"y": []any{1, 2}, "x": 1}})
	if a != b {
		t.Fatalf("nested ordering changed key")
	}
	c := Fingerprint("ns", "q", map[string]any{"f": map[string]any{"x": 1, "y": []any{2, 1}}})
	if a == c {
		t.Fatalf("array order should be significant")
	}
}
