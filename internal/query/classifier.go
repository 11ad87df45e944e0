// Package query classifies command text as read-only or write and extracts
// the write verb, using a fixed syntactic rule on the leading token.
package query

import (
	"strings"

	"syncgate/internal/core"
)

// Classifier decides routing and cache eligibility for command text.
// The same classifier must govern both, so the gateway holds exactly one.
type Classifier interface {
	// IsReadOnly reports whether the command has no write verb.
	IsReadOnly(queryText string) bool
	// OperationType returns the leading write verb, or OpUnknown for
	// read-only or unrecognized commands.
	OperationType(queryText string) core.OperationKind
}

// writeVerbs is the fixed set of leading tokens that mark a command as a write.
// SET is a write for routing purposes but has no replayable operation kind.
var writeVerbs = map[string]core.OperationKind{
	"INSERT": core.OpInsert,
	"UPSERT": core.OpUpsert,
	"DELETE": core.OpDelete,
	"UPDATE": core.OpUpdate,
	"CREATE": core.OpCreate,
	"DROP":   core.OpDrop,
	"LOAD":   core.OpLoad,
	"SET":    core.OpUnknown,
}

// LeadingToken is the default Classifier.
type LeadingToken struct{}

// NewClassifier returns the leading-token classifier.
func NewClassifier() LeadingToken {
	return LeadingToken{}
}

// IsReadOnly reports whether the normalized leading token is outside the
// write-verb set.
func (LeadingToken) IsReadOnly(queryText string) bool {
	_, ok := writeVerbs[leadingToken(queryText)]
	return !ok
}

// OperationType maps the leading token to its operation kind.
func (LeadingToken) OperationType(queryText string) core.OperationKind {
	if kind, ok := writeVerbs[leadingToken(queryText)]; ok {
		return kind
	}
	return core.OpUnknown
}

func leadingToken(queryText string) string {
	fields := strings.Fields(queryText)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
