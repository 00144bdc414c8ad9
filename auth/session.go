package auth

import (
	"context"
	"errors"
	"strings"
)

type SessionState int

const (
	SessionAnonymous SessionState = iota
	SessionAuthenticated
	SessionExpired
)

func (s SessionState) String() string {
	switch s {
	case SessionAuthenticated:
		return "authenticated"
	case SessionExpired:
		return "expired"
	default:
		return "anonymous"
	}
}

// ErrMissingToken means no usable bearer credential was presented.
var ErrMissingToken = errors.New("access token required")

// Session is the per-request authentication state handed to handlers.
type Session struct {
	State  SessionState
	Claims *Claims
}

func (s *Session) Authenticated() bool {
	return s != nil && s.State == SessionAuthenticated && s.Claims != nil
}

func (s *Session) Role() Role {
	if !s.Authenticated() {
		return ""
	}
	return s.Claims.Role
}

func (s *Session) SubjectID() uint {
	if !s.Authenticated() {
		return 0
	}
	return s.Claims.SubjectID()
}

// ResolveSession turns an Authorization header value into a session.
// The returned error is ErrMissingToken for an absent or malformed header,
// otherwise whatever TokenIssuer.Verify reported.
func ResolveSession(ctx context.Context, issuer *TokenIssuer, header string) (*Session, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return &Session{State: SessionAnonymous}, ErrMissingToken
	}

	claims, err := issuer.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenRevoked) {
			return &Session{State: SessionExpired}, err
		}
		return &Session{State: SessionAnonymous}, err
	}
	return &Session{State: SessionAuthenticated, Claims: claims}, nil
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
