package docerr

import (
	"errors"
	"testing"
)

func TestWrapNilIsNil(t *testing.T) {
	if err := Wrap(IO, "reading file", nil); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestIsMatchesKind(t *testing.T) {
	base := errors.New("disk full")
	err := Wrap(IO, "writing cache entry", base)

	if !Is(err, IO) {
		t.Error("expected Is(err, IO) to be true")
	}
	if Is(err, Transport) {
		t.Error("expected Is(err, Transport) to be false")
	}
}

func TestUnwrapReachesCause(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(Corruption, "parsing index", base)

	if !errors.Is(err, base) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestErrorMessageIncludesKind(t *testing.T) {
	err := New(NotFound, "crate tokio not found")
	want := "not_found: crate tokio not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindStringUnknown(t *testing.T) {
	var k Kind = 99
	if k.String() != "unknown" {
		t.Errorf("String() = %q, want %q", k.String(), "unknown")
	}
}
