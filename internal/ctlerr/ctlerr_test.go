package ctlerr

import (
	"errors"
	"testing"
)

func TestKindMatching(t *testing.T) {
	err := NotFound("node %s", "abc")

	if !errors.Is(err, NotFound("")) {
		t.Fatal("expected errors.Is to match by kind")
	}
	if errors.Is(err, Conflict("")) {
		t.Fatal("did not expect NotFound to match Conflict")
	}
	if !IsNotFound(err) {
		t.Fatal("expected IsNotFound(err) to be true")
	}
}

func TestTransportWrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Transport(cause, "posting to compute")

	if !errors.Is(err, cause) {
		t.Fatal("expected Transport error to wrap its cause")
	}
	if err.Kind() != KindTransport {
		t.Fatalf("expected KindTransport, got %v", err.Kind())
	}
}

func TestStatusCodes(t *testing.T) {
	cases := map[Kind]int{
		KindBadRequest: 400,
		KindNotFound:   404,
		KindConflict:   409,
		KindTransport:  500,
	}

	for k, want := range cases {
		if got := k.Status(); got != want {
			t.Fatalf("Kind(%v).Status() = %d, want %d", k, got, want)
		}
	}
}
