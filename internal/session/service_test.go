package session

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user/entity"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, now *time.Time) *Service {
	t.Helper()
	s, err := NewService([]byte("test-secret"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	s.Now = func() time.Time { return *now }
	return s
}

func alice() *entity.User {
	return &entity.User{ID: 7, Username: "alice", Role: entity.RoleUser}
}

func TestIssue_ConfiguredDefaultTTL(t *testing.T) {
	now := t0
	s := newTestService(t, &now)
	s.TTL = 5 * time.Minute
	_, exp, err := s.Issue(alice(), 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.Equal(t0.Add(5 * time.Minute)) {
		t.Fatalf("expected configured ttl, exp=%v", exp)
	}
}

func TestIssueResolve_RoundTrip(t *testing.T) {
	now := t0
	s := newTestService(t, &now)
	tok, exp, err := s.Issue(&entity.User{ID: 2, Username: "root", Role: entity.RoleAdmin}, 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.Equal(t0.Add(DefaultTTL)) {
		t.Fatalf("expected default ttl, exp=%v", exp)
	}
	id, err := s.Resolve(tok)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.Username != "root" || id.UserID != 2 || !id.IsAdmin() {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestResolve_ExpiryBoundary(t *testing.T) {
	now := t0
	s := newTestService(t, &now)
	tok, _, err := s.Issue(alice(), 30*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = t0.Add(29 * time.Minute)
	if _, err := s.Resolve(tok); err != nil {
		t.Fatalf("expected token valid at minute 29: %v", err)
	}

	now = t0.Add(31 * time.Minute)
	if _, err := s.Resolve(tok); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected Unauthenticated at minute 31, got %v", err)
	}
}

func TestResolve_RejectsTamperedToken(t *testing.T) {
	now := t0
	s := newTestService(t, &now)
	tok, _, _ := s.Issue(alice(), time.Minute)
	parts := strings.Split(tok, ".")
	// swap payload for one claiming admin, keep the old signature
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           7,
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour))},
	})
	forgedSigned, _ := forged.SignedString([]byte("other"))
	fp := strings.Split(forgedSigned, ".")
	tampered := parts[0] + "." + fp[1] + "." + parts[2]

	if _, err := s.Resolve(tampered); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected tampered token rejected, got %v", err)
	}
	if _, err := s.Resolve(forgedSigned); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected foreign-secret token rejected, got %v", err)
	}
}

func TestResolve_RejectsUnsignedAndMalformed(t *testing.T) {
	now := t0
	s := newTestService(t, &now)
	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           7,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(t0.Add(time.Hour))},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString none: %v", err)
	}
	for _, tok := range []string{"", "garbage", "a.b.c", unsigned} {
		if _, err := s.Resolve(tok); !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Fatalf("Resolve(%q): expected Unauthenticated, got %v", tok, err)
		}
	}
}

func TestResolve_RequiresClaims(t *testing.T) {
	now := t0
	s := newTestService(t, &now)
	sign := func(c Claims) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("test-secret"))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return tok
	}
	exp := jwt.NewNumericDate(t0.Add(time.Hour))
	cases := map[string]Claims{
		"no subject": {UserID: 7, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}},
		"no id":      {RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: exp}},
		"no expiry":  {UserID: 7, RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"}},
		"bad role":   {UserID: 7, Role: "root", RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: exp}},
	}
	for name, c := range cases {
		if _, err := s.Resolve(sign(c)); !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Fatalf("%s: expected Unauthenticated, got %v", name, err)
		}
	}
}

func TestNewService_RejectsEmptySecret(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/todos/", nil)
	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	if got := TokenFromRequest(r); got != "abc.def.ghi" {
		t.Fatalf("bearer: got %q", got)
	}

	r = httptest.NewRequest("GET", "/todos/", nil)
	r.Header.Set("Cookie", CookieName+"=cookie.tok.en")
	r.Header.Set("Authorization", "Bearer header.tok.en")
	if got := TokenFromRequest(r); got != "cookie.tok.en" {
		t.Fatalf("cookie should win: got %q", got)
	}

	r = httptest.NewRequest("GET", "/todos/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	if got := TokenFromRequest(r); got != "" {
		t.Fatalf("basic auth should be ignored: got %q", got)
	}
}
