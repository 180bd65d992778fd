package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type staticToken string

func (s staticToken) CurrentToken() (string, bool) {
	return string(s), s != ""
}

func newTestReader(token string, now time.Time) *Reader {
	r := NewReader(staticToken(token))
	r.now = func() time.Time { return now }
	return r
}

func TestReaderState(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	cases := []struct {
		name  string
		token string
		want  State
	}{
		{name: "no token", token: "", want: StateAbsent},
		{name: "malformed token", token: "abc.def", want: StateAbsent},
		{name: "garbage segments", token: "a.b.c", want: StateAbsent},
		{name: "expired", token: signToken(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()}), want: StateExpired},
		{name: "expires exactly now", token: signToken(t, jwt.MapClaims{"exp": now.Unix()}), want: StateExpired},
		{name: "no exp claim", token: signToken(t, jwt.MapClaims{"organization_id": 1}), want: StateExpired},
		{name: "valid", token: signToken(t, jwt.MapClaims{"exp": now.Add(time.Minute).Unix()}), want: StateValid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestReader(tc.token, now)
			if got := r.State(); got != tc.want {
				t.Fatalf("State() = %q, want %q", got, tc.want)
			}
			if got := r.IsValid(); got != (tc.want == StateValid) {
				t.Fatalf("IsValid() = %v", got)
			}
		})
	}
}

func TestReaderDoesNotVerifySignature(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("some-other-issuer-key"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if !NewReader(staticToken(token)).IsValid() {
		t.Fatal("expected token signed with an unknown key to be accepted by the advisory check")
	}
}

func TestReaderWithMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	reader := NewReader(store)
	if reader.IsValid() {
		t.Fatal("expected invalid without a session")
	}

	if err := store.Establish(validResponse(t)); err != nil {
		t.Fatalf("Establish returned error: %v", err)
	}
	if !reader.IsValid() {
		t.Fatal("expected valid after Establish")
	}

	if err := store.Revoke(); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if reader.IsValid() {
		t.Fatal("expected invalid after Revoke")
	}
}

func TestDecodeClaimsMalformed(t *testing.T) {
	for _, token := range []string{"", "x", "x.y.z"} {
		if _, err := DecodeClaims(token); !errors.Is(err, ErrTokenDecode) {
			t.Fatalf("DecodeClaims(%q) error = %v, want ErrTokenDecode", token, err)
		}
	}
}
