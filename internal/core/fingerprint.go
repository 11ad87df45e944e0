package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint derives the deterministic cache key for a logical query.
// Whitespace in the query text is collapsed and parameters are serialized
// with sorted keys, so identical queries always map to the same key
// regardless of formatting or map iteration order.
func Fingerprint(namespace, query string, params map[string]any) string {
	h := xxhash.New()
	h.WriteString(namespace)
	h.WriteString("\x00")
	h.WriteString(canonicalQuery(query))
	h.WriteString("\x00")
	h.Write(canonicalJSON(params))
	return fmt.Sprintf("%s:%016x", namespace, h.Sum64())
}

func canonicalQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// canonicalJSON serializes a value with object keys in sorted order.
func canonicalJSON(v any) []byte {
	var buf strings.Builder
	writeCanonical(&buf, v)
	return []byte(buf.String())
}

func writeCanonical(buf *strings.Builder, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			writeCanonical(buf, val[k])
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, item)
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(val)
		if err != nil {
			// Unmarshalable values still need a stable representation.
			b = []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", val)))
		}
		buf.Write(b)
	}
}
