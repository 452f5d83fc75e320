package zapi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/multy/internal/logging"
)

// LoginRoot is the rpc root used for both local and SSO login.
const LoginRoot = "authentication"

// ErrLoginFailed marks errors produced by an explicit login, as opposed to
// auth failures reported on an ordinary call.
var ErrLoginFailed = errors.New("login failed")

// CredentialKind distinguishes how a session authenticates.
type CredentialKind string

const (
	CredentialLocal CredentialKind = "local"
	CredentialSSO   CredentialKind = "sso"
)

// Credential produces the login call for a session.
type Credential interface {
	Kind() CredentialKind
	LoginCall() CallSpec
}

// LocalCredential authenticates with the router's admin account.
type LocalCredential struct {
	Username string
	Password string
}

func (c LocalCredential) Kind() CredentialKind { return CredentialLocal }

func (c LocalCredential) LoginCall() CallSpec {
	return RPC(NSAuth, LoginRoot, map[string]any{
		"name":     c.Username,
		"password": c.Password,
	})
}

// GrantCredential authenticates with a single-use SSO grant code.
type GrantCredential struct {
	GrantCode string
}

func (c GrantCredential) Kind() CredentialKind { return CredentialSSO }

func (c GrantCredential) LoginCall() CallSpec {
	return RPC(NSAuth, LoginRoot, map[string]any{
		"grant-code": c.GrantCode,
	})
}

// SessionState is the lifecycle state of a Session.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticating
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("SessionState(%d)", s)
	}
}

// Token is an issued session token and the cookie that accompanies it.
type Token struct {
	Value      string
	SysAuth    string
	Kind       CredentialKind
	ObtainedAt time.Time
	// Generation increases by one with every successful login
	Generation uint64
}

// Session owns the authenticated state for one router.
//
// Calls hold a read lock for the duration of a send so that a re-login
// never overlaps a call using the token it replaces.
type Session struct {
	ID string

	sender     Sender
	credential Credential

	mu         sync.RWMutex
	token      *Token
	state      SessionState
	generation uint64
	logins     int

	idMu   sync.Mutex
	lastID int64

	now func() time.Time
}

// NewSession creates an unauthenticated session. No network I/O happens
// until the first call or an explicit Login.
func NewSession(sender Sender, credential Credential) *Session {
	return &Session{
		ID:         uuid.NewString(),
		sender:     sender,
		credential: credential,
		now:        time.Now,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Logins returns how many login exchanges this session has performed.
func (s *Session) Logins() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logins
}

// Token returns a copy of the current token, if any.
func (s *Session) Token() (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return Token{}, false
	}
	return *s.token, true
}

// NextMessageID returns the next envelope message-id: epoch seconds, never
// lower than a previously issued id.
func (s *Session) NextMessageID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	id := s.now().Unix()
	if id < s.lastID {
		id = s.lastID
	}
	s.lastID = id
	return id
}

// Login performs exactly one login exchange, replacing any current token.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginLocked(ctx)
}

// Refresh re-authenticates after the router rejected the token of the given
// generation. If another caller already refreshed past it, Refresh returns
// without a new login.
func (s *Session) Refresh(ctx context.Context, staleGeneration uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil && s.token.Generation != staleGeneration {
		return nil
	}
	return s.loginLocked(ctx)
}

// Use runs fn with the current token, logging in first when the session has
// none. Refreshes block until fn returns.
func (s *Session) Use(ctx context.Context, fn func(Token) error) error {
	for range 2 {
		s.mu.RLock()
		if s.token != nil {
			tok := *s.token
			err := fn(tok)
			s.mu.RUnlock()
			return err
		}
		s.mu.RUnlock()

		if err := s.ensureLogin(ctx); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrLoginFailed, NewAuthError("session released during login"))
}

// Release forgets the token. The router has no logout call; the token simply
// lapses on the device.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
	s.state = StateUnauthenticated
}

func (s *Session) ensureLogin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil {
		return nil
	}
	return s.loginLocked(ctx)
}

// loginLocked exchanges the credential for a token. Caller holds s.mu.
func (s *Session) loginLocked(ctx context.Context) error {
	if s.credential == nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, NewAuthError("no credential configured"))
	}

	s.state = StateAuthenticating
	s.logins++
	start := s.now()

	tok, err := s.exchange(ctx)
	if err != nil {
		s.token = nil
		s.state = StateUnauthenticated
		logging.Warn("Login failed",
			zap.String("session", s.ID),
			zap.String("credential", string(s.credential.Kind())),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	s.generation++
	tok.Generation = s.generation
	s.token = tok
	s.state = StateAuthenticated

	logging.Info("Logged in",
		zap.String("session", s.ID),
		zap.String("credential", string(tok.Kind)),
		zap.Uint64("generation", tok.Generation),
		zap.Duration("elapsed", s.now().Sub(start)),
	)
	return nil
}

func (s *Session) exchange(ctx context.Context) (*Token, error) {
	spec := s.credential.LoginCall()
	body, err := Encode(spec, s.NextMessageID())
	if err != nil {
		return nil, err
	}

	// The login call carries neither token nor cookie
	resp, err := s.sender.Send(ctx, body, nil)
	if err != nil {
		if IsAuthError(err) {
			return nil, err
		}
		authErr := NewAuthError("login request failed")
		authErr.Err = err
		return nil, authErr
	}

	reply, err := Decode(resp.Body, spec)
	if err != nil {
		if IsDeviceError(err) || IsProtocolError(err) {
			authErr := NewAuthError("router rejected the credential")
			authErr.Err = err
			if zerr, ok := asError(err); ok {
				authErr.Code = zerr.Code
			}
			return nil, authErr
		}
		return nil, err
	}

	value := extractToken(reply)
	if value == "" {
		return nil, NewAuthError("login reply carried no token")
	}

	return &Token{
		Value:      value,
		SysAuth:    resp.SysAuth,
		Kind:       s.credential.Kind(),
		ObtainedAt: s.now(),
	}, nil
}

// extractToken reads output.token from the login reply, scanning every data
// element when the root is labelled differently.
func extractToken(reply *Reply) string {
	if out := reply.Output(); out != nil {
		if tok, ok := out["token"].(string); ok && tok != "" {
			return tok
		}
	}
	for _, value := range reply.Element {
		obj, ok := value.(map[string]any)
		if !ok {
			continue
		}
		out, ok := obj["output"].(map[string]any)
		if !ok {
			continue
		}
		if tok, ok := out["token"].(string); ok && tok != "" {
			return tok
		}
	}
	return ""
}
