package session

import (
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"mitienda/client/internal/port"
)

// State is the session lifecycle position. It only moves forward through
// anonymous -> authenticated -> expired, except that Logout returns to
// anonymous.
type State string

const (
	Anonymous     State = "anonymous"
	Authenticated State = "authenticated"
	Expired       State = "expired"
)

// Session holds the access token and its lifecycle explicitly, instead of
// ambient global storage. Collaborators receive the session at construction
// and observe changes through a single subscribable stream.
type Session struct {
	mu        sync.Mutex
	state     State
	token     string
	username  string
	expiresAt time.Time
	expiry    *time.Timer
	subs      []chan State
}

func New() *Session {
	return &Session{state: Anonymous}
}

// SetToken installs a signed access token. The expiry claim drives the
// authenticated -> expired transition automatically. The signature is not
// verified here: the client has no key material, and the backend rejects
// forged tokens anyway.
func (s *Session) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return &port.ValidationError{Field: "token", Message: "token is empty"}
	}

	claims := jwtlib.RegisteredClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(token, &claims); err != nil {
		return &port.ValidationError{Field: "token", Message: "token is not a valid JWT"}
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	s.mu.Lock()
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
	s.token = token
	s.username = claims.Subject
	s.expiresAt = expiresAt

	if !expiresAt.IsZero() && !expiresAt.After(time.Now()) {
		s.state = Expired
		s.mu.Unlock()
		s.broadcast(Expired)
		return port.ErrSessionExpired
	}

	s.state = Authenticated
	if !expiresAt.IsZero() {
		s.expiry = time.AfterFunc(time.Until(expiresAt), s.expire)
	}
	s.mu.Unlock()
	s.broadcast(Authenticated)
	return nil
}

func (s *Session) expire() {
	s.mu.Lock()
	if s.state != Authenticated {
		s.mu.Unlock()
		return
	}
	s.state = Expired
	s.mu.Unlock()
	s.broadcast(Expired)
}

// Token returns the current access token. Expired sessions yield
// ErrSessionExpired; anonymous sessions yield an empty token and no error,
// letting unauthenticated ports decide for themselves.
func (s *Session) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Expired {
		return "", port.ErrSessionExpired
	}
	return s.token, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// Subscribe returns the session's state stream. Slow consumers miss
// intermediate states rather than block the session.
func (s *Session) Subscribe() <-chan State {
	ch := make(chan State, 4)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Logout drops the token and returns to anonymous.
func (s *Session) Logout() {
	s.mu.Lock()
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
	s.token = ""
	s.username = ""
	s.expiresAt = time.Time{}
	s.state = Anonymous
	s.mu.Unlock()
	s.broadcast(Anonymous)
}

func (s *Session) broadcast(state State) {
	s.mu.Lock()
	subs := make([]chan State, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- state:
		default:
		}
	}
}
