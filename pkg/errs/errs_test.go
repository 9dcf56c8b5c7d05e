package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapNilCause(t *testing.T) {
	if err := Wrap(nil, CodeToolExecution, "ignored"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestCodeSurvivesWrapping(t *testing.T) {
	base := errors.New("connection refused")
	coded := Wrap(base, CodeProviderUnavailable, "chat completion failed")
	outer := fmt.Errorf("converse: %w", coded)

	if got := CodeOf(outer); got != CodeProviderUnavailable {
		t.Fatalf("CodeOf = %q, want %q", got, CodeProviderUnavailable)
	}
	if !HasCode(outer, CodeProviderUnavailable) {
		t.Fatalf("HasCode should match through fmt wrapping")
	}
	if HasCode(outer, CodeToolExecution) {
		t.Fatalf("HasCode matched the wrong code")
	}
	if !errors.Is(outer, base) {
		t.Fatalf("cause should stay reachable through Unwrap")
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf = %q, want %q", got, CodeUnknown)
	}
}

func TestErrorString(t *testing.T) {
	err := New(CodeIterationLimitExceeded, "gave up after %d rounds", 5)
	want := "gave up after 5 rounds"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
