package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{NewValidationError("bad id"), KindValidation},
		{NewStorageError("write failed", errors.New("disk full")), KindStorage},
		{NewOfflineNoCacheError("orders:abc"), KindOfflineNoCache},
		{NewNonCacheableOfflineError(), KindNonCacheableOffline},
		{NewRemoteError(errors.New("502")), KindRemote},
	}
	for _, c := range cases {
		if !IsKind(c.err, c.kind) {
			t.Errorf("IsKind(%v, %s) = false", c.err, c.kind)
		}
	}
	if IsKind(errors.New("plain"), KindStorage) {
		t.Error("plain error misclassified as storage error")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewRemoteError(cause)
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause not reachable via errors.Is")
	}
	wrapped := fmt.Errorf("sync: %w", err)
	if !IsKind(wrapped, KindRemote) {
		t.Fatal("IsKind should see through fmt.Errorf wrapping")
	}
}

func TestMetaPatchApply(t *testing.T) {
	meta := OperationMeta{Status: StatusPending, RetryCount: 0, Priority: 1}

	status := StatusFailed
	retries := 2
	MetaPatch{Status: &status, RetryCount: &retries}.Apply(&meta)

	if meta.Status != StatusFailed || meta.RetryCount != 2 {
		t.Fatalf("patch not applied: %+v", meta)
	}
	if meta.Priority != 1 {
		t.Fatalf("untouched field changed: %+v", meta)
	}
}
