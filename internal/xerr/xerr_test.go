package xerr

import (
	"errors"
	"testing"
)

func TestError_UnwrapsInnerErr(t *testing.T) {
	inner := errors.New("bad digest")
	e := New(Auth, "port.input", inner)
	if !errors.Is(e, inner) {
		t.Fatal("expected errors.Is to find the wrapped inner error")
	}
}

func TestError_StringWithoutInnerErr(t *testing.T) {
	e := New(Fatal, "fib.set_table", nil)
	want := "fib.set_table: fatal"
	if e.Error() != want {
		t.Fatalf("expected %q, got %q", want, e.Error())
	}
}

func TestIs_MatchesKind(t *testing.T) {
	e := New(Validation, "packet.decode", errors.New("short packet"))
	if !Is(e, Validation) {
		t.Fatal("expected Is to match Validation")
	}
	if Is(e, Auth) {
		t.Fatal("expected Is to not match a different kind")
	}
}

func TestIs_NonXerrError(t *testing.T) {
	if Is(errors.New("plain error"), Validation) {
		t.Fatal("expected Is to return false for a non-*Error")
	}
}

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		Validation: "validation",
		Auth:       "auth",
		Policy:     "policy",
		Platform:   "platform",
		Peer:       "peer",
		Fatal:      "fatal",
	}
	for k, want := range cases {
		if k.String() != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, k.String(), want)
		}
	}
}
