package session

import (
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"mitienda/client/internal/port"
)

func signedToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwtlib.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		ExpiresAt: jwtlib.NewNumericDate(expiresAt),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	return token
}

func TestSetTokenAuthenticates(t *testing.T) {
	s := New()
	if s.State() != Anonymous {
		t.Fatalf("expected fresh session anonymous, got %v", s.State())
	}

	if err := s.SetToken(signedToken(t, "demo", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("set token failed: %v", err)
	}
	if s.State() != Authenticated {
		t.Fatalf("expected authenticated, got %v", s.State())
	}
	if s.Username() != "demo" {
		t.Fatalf("expected subject as username, got %q", s.Username())
	}

	token, err := s.Token()
	if err != nil || token == "" {
		t.Fatalf("expected usable token, got %q, %v", token, err)
	}
}

func TestSetTokenRejectsGarbage(t *testing.T) {
	s := New()
	var vErr *port.ValidationError
	if err := s.SetToken("not-a-jwt"); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := s.SetToken("   "); !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for blank token, got %v", err)
	}
}

func TestExpiredTokenMovesToExpired(t *testing.T) {
	s := New()
	err := s.SetToken(signedToken(t, "demo", time.Now().Add(-time.Minute)))
	if !errors.Is(err, port.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if s.State() != Expired {
		t.Fatalf("expected expired state, got %v", s.State())
	}
	if _, err := s.Token(); !errors.Is(err, port.ErrSessionExpired) {
		t.Fatalf("expected Token to refuse expired session, got %v", err)
	}
}

func TestSessionExpiresWhileHeld(t *testing.T) {
	s := New()
	if err := s.SetToken(signedToken(t, "demo", time.Now().Add(40*time.Millisecond))); err != nil {
		t.Fatalf("set token failed: %v", err)
	}

	states := s.Subscribe()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case state := <-states:
			if state == Expired {
				if _, err := s.Token(); !errors.Is(err, port.ErrSessionExpired) {
					t.Fatalf("expected expired token error, got %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatalf("session never expired")
		}
	}
}

func TestLogoutReturnsToAnonymous(t *testing.T) {
	s := New()
	if err := s.SetToken(signedToken(t, "demo", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("set token failed: %v", err)
	}

	s.Logout()
	if s.State() != Anonymous {
		t.Fatalf("expected anonymous after logout, got %v", s.State())
	}
	token, err := s.Token()
	if err != nil || token != "" {
		t.Fatalf("expected empty token and no error, got %q, %v", token, err)
	}
}

func TestSubscribeSeesTransitions(t *testing.T) {
	s := New()
	states := s.Subscribe()

	if err := s.SetToken(signedToken(t, "demo", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("set token failed: %v", err)
	}

	select {
	case state := <-states:
		if state != Authenticated {
			t.Fatalf("expected authenticated transition, got %v", state)
		}
	case <-time.After(time.Second):
		t.Fatalf("no state broadcast")
	}
}
