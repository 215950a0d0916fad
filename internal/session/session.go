// Package session owns the authenticated session: the credential, its
// durable copy and the resolved identity.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/verte-zerg/bookdesk/internal/api"
	"github.com/verte-zerg/bookdesk/internal/model"
)

// State is the session lifecycle state.
type State int

const (
	// Anonymous holds no credential.
	Anonymous State = iota
	// Restoring holds a durable credential whose identity is not yet confirmed.
	Restoring
	// Authenticated holds a credential confirmed by a login or a lookup.
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ErrMissingCredentials is returned by Login when email or password is empty.
var ErrMissingCredentials = fmt.Errorf("email and password are required: %w", api.ErrValidation)

// Backend is the part of the gateway the session needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (string, error)
	MeAs(ctx context.Context, cred api.Credential) (model.Identity, error)
}

// TokenStore persists the credential across runs.
type TokenStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	DeleteToken(ctx context.Context) error
}

// Session is safe for concurrent use.
type Session struct {
	backend Backend
	tokens  TokenStore
	log     logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	group  singleflight.Group

	mu       sync.RWMutex
	state    State
	cred     api.Credential
	identity *model.Identity

	subMu       sync.Mutex
	subscribers []func(State)
	onExpire    []func(reason string)
}

// New creates a session, reading any durable credential. A stored token puts
// the session in Restoring until Restore confirms or discards it.
func New(ctx context.Context, backend Backend, tokens TokenStore, log logrus.FieldLogger) (*Session, error) {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	token, err := tokens.LoadToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		backend: backend,
		tokens:  tokens,
		log:     log,
		ctx:     sctx,
		cancel:  cancel,
	}
	if strings.TrimSpace(token) != "" {
		s.state = Restoring
		s.cred = api.Credential{Token: token, Epoch: 1}
	}
	return s, nil
}

// Credential returns the current credential. Implements api.CredentialSource.
func (s *Session) Credential() api.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether a credential is held.
func (s *Session) IsAuthenticated() bool {
	return s.State() != Anonymous
}

// Identity returns the resolved identity, if any.
func (s *Session) Identity() (model.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return model.Identity{}, false
	}
	return *s.identity, true
}

// Subscribe registers fn to be called after every state transition.
func (s *Session) Subscribe(fn func(State)) {
	if fn == nil {
		return
	}
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.subMu.Unlock()
}

// OnExpire registers fn to be called when a rejected credential ends the
// session. Explicit logouts do not trigger it.
func (s *Session) OnExpire(fn func(reason string)) {
	if fn == nil {
		return
	}
	s.subMu.Lock()
	s.onExpire = append(s.onExpire, fn)
	s.subMu.Unlock()
}

func (s *Session) notify(state State) {
	s.subMu.Lock()
	subs := append([]func(State){}, s.subscribers...)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(state)
	}
}

// Login exchanges credentials for a token. On rejection the session is left
// untouched and the error matches api.ErrInvalidCredentials.
func (s *Session) Login(ctx context.Context, email, password string) (api.Credential, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return api.Credential{}, ErrMissingCredentials
	}
	token, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return api.Credential{}, err
	}

	s.mu.Lock()
	if err := s.tokens.SaveToken(ctx, token); err != nil {
		s.mu.Unlock()
		return api.Credential{}, fmt.Errorf("failed to save token: %w", err)
	}
	s.cred = api.Credential{Token: token, Epoch: s.cred.Epoch + 1}
	s.state = Authenticated
	s.identity = nil
	cred := s.cred
	s.mu.Unlock()

	s.log.WithField("epoch", cred.Epoch).Info("logged in")
	s.notify(Authenticated)
	s.resolveInBackground(cred)
	return cred, nil
}

func (s *Session) resolveInBackground(cred api.Credential) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.resolve(s.ctx, cred); err != nil && !errors.Is(err, context.Canceled) {
			s.log.WithError(err).Warn("identity lookup after login failed")
		}
	}()
}

// Restore confirms a durable credential by looking up its identity. Any
// failure ends the session. Without a durable credential it does nothing.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.RLock()
	state, cred := s.state, s.cred
	s.mu.RUnlock()
	if state != Restoring {
		return nil
	}
	_, err := s.resolve(ctx, cred)
	return err
}

// ResolveIdentity looks up the identity of the current credential. Concurrent
// calls for the same credential share one request.
func (s *Session) ResolveIdentity(ctx context.Context) (model.Identity, error) {
	cred := s.Credential()
	if !cred.Valid() {
		return model.Identity{}, api.ErrAuthorizationExpired
	}
	return s.resolve(ctx, cred)
}

func (s *Session) resolve(ctx context.Context, cred api.Credential) (model.Identity, error) {
	// Shared lookups run on the session context, not the caller's.
	ch := s.group.DoChan(strconv.FormatUint(cred.Epoch, 10), func() (any, error) {
		return s.backend.MeAs(s.ctx, cred)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return model.Identity{}, ctx.Err()
	}
	if res.Err != nil {
		if s.ctx.Err() != nil {
			return model.Identity{}, res.Err
		}
		s.expire(cred, "identity lookup failed")
		return model.Identity{}, res.Err
	}
	identity := res.Val.(model.Identity)

	s.mu.Lock()
	if s.cred.Epoch != cred.Epoch || !s.cred.Valid() {
		s.mu.Unlock()
		return identity, nil
	}
	s.identity = &identity
	changed := s.state != Authenticated
	s.state = Authenticated
	s.mu.Unlock()
	if changed {
		s.log.Info("session restored")
		s.notify(Authenticated)
	}
	return identity, nil
}

// Expire ends the session if cred is still the current credential. The
// gateway calls it when the backend rejects cred.
func (s *Session) Expire(cred api.Credential) {
	s.expire(cred, "credential rejected")
}

func (s *Session) expire(cred api.Credential, reason string) {
	s.mu.RLock()
	current := s.cred.Epoch == cred.Epoch && s.cred.Valid()
	s.mu.RUnlock()
	if !current {
		return
	}
	ended, err := s.logoutIf(func(c api.Credential) bool { return c.Epoch == cred.Epoch })
	if err != nil {
		s.log.WithError(err).Error("failed to clear durable token")
	}
	if !ended {
		return
	}
	s.log.WithField("reason", reason).Warn("session ended")
	s.subMu.Lock()
	hooks := append([]func(string){}, s.onExpire...)
	s.subMu.Unlock()
	for _, fn := range hooks {
		fn(reason)
	}
}

// Logout clears the credential, its durable copy and the identity. It is
// idempotent and safe to call concurrently.
func (s *Session) Logout() error {
	_, err := s.logoutIf(nil)
	return err
}

// logoutIf reports whether this call moved the session to Anonymous.
func (s *Session) logoutIf(match func(api.Credential) bool) (bool, error) {
	s.mu.Lock()
	if match != nil && !match(s.cred) {
		s.mu.Unlock()
		return false, nil
	}
	wasAnonymous := s.state == Anonymous && !s.cred.Valid()
	s.cred = api.Credential{Epoch: s.cred.Epoch + 1}
	s.state = Anonymous
	s.identity = nil
	err := s.tokens.DeleteToken(context.Background())
	s.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("failed to delete token: %w", err)
	}
	if !wasAnonymous {
		s.notify(Anonymous)
	}
	return !wasAnonymous, err
}

// Close cancels background identity lookups and waits for them.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
}

// TokenExpiry reports the expiry of a JWT credential without verifying it.
// Opaque tokens report ok=false.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
