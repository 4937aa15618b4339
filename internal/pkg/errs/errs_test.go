package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewErrorFormatsDetails(t *testing.T) {
	err := NewError(ErrUsernameOnline, "alice")

	if err.Message != "User alice is already online." {
		t.Errorf("unexpected message %q", err.Message)
	}
	if err.Status != http.StatusOK {
		t.Errorf("expected default status %d, got %d", http.StatusOK, err.Status)
	}
}

func TestNewErrorUnknownCode(t *testing.T) {
	err := NewError(-1)

	if err.Code != ErrUnknown {
		t.Errorf("expected code %d, got %d", ErrUnknown, err.Code)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := fmt.Errorf("load users: %w", Wrap(ErrStoreCorrupt, cause))

	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable with errors.Is")
	}
	if !errors.Is(err, NewError(ErrStoreCorrupt)) {
		t.Error("expected errors.Is to match on code")
	}
	if errors.Is(err, NewError(ErrStoreUnavailable)) {
		t.Error("errors.Is matched a different code")
	}
	if !HasCode(err, ErrStoreCorrupt) {
		t.Error("HasCode did not find ErrStoreCorrupt")
	}
	if HasCode(err, ErrUnknown) {
		t.Error("HasCode matched a code that is not in the chain")
	}
}
