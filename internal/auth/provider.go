// Package auth is the built-in session provider: email and password users,
// HS256 session tokens, and a session file so a restart restores the last
// sign-in.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/store"
)

const (
	minPasswordLen = 8
	subscriberBuf  = 16
	tokenCacheSize = 256
)

// ErrInvalidCredentials is returned by SignIn for an unknown email or a
// wrong password. The two cases are not distinguished.
var ErrInvalidCredentials = errors.New("invalid email or password")

type Config struct {
	Secret      []byte
	TTL         time.Duration
	SessionFile string // empty disables persistence
	BcryptCost  int
}

// Provider implements session.Provider.
type Provider struct {
	users  store.Users
	cfg    Config
	now    func() time.Time
	logger *log.Logger
	tokens *cache.LRUCache[*core.Session]

	mu      sync.RWMutex
	current *core.Session
	subs    map[int]chan core.SessionEvent
	nextSub int
}

type Option func(*Provider)

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func WithLogger(logger *log.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// New creates a provider and restores the session persisted in
// cfg.SessionFile, if any.
func New(users store.Users, cfg Config, opts ...Option) (*Provider, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	p := &Provider{
		users:  users,
		cfg:    cfg,
		now:    time.Now,
		logger: log.Default(log.ComponentAuth),
		subs:   map[int]chan core.SessionEvent{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.tokens = cache.NewLRUCache[*core.Session](tokenCacheSize, cfg.TTL)
	p.restore()
	return p, nil
}

// Tokens exposes the token cache so a cache.Manager can sweep it.
func (p *Provider) Tokens() cache.Cleaner {
	return p.tokens
}

func (p *Provider) CurrentSession(context.Context) (*core.Session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current.Expired(p.now()) {
		return nil, nil
	}
	return p.current, nil
}

// Subscribe registers a listener. The first event is InitialSession with
// the current session or nil.
func (p *Provider) Subscribe() (<-chan core.SessionEvent, func()) {
	ch := make(chan core.SessionEvent, subscriberBuf)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	current := p.current
	if current.Expired(p.now()) {
		current = nil
	}
	ch <- core.SessionEvent{Kind: core.InitialSession, Session: current}
	p.mu.Unlock()

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
		}
	}
}

// broadcast must be called with p.mu held.
func (p *Provider) broadcast(ev core.SessionEvent) {
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			// Make room by dropping the oldest queued event; the newest
			// state is the one that matters.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
			p.logger.Warn("Session subscriber lagging, dropped an event")
		}
	}
}

// SignUp registers a user and signs them in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*core.Session, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := p.users.CreateUser(ctx, store.User{ID: uuid.NewString(), Email: email, PasswordHash: string(hash)})
	if err != nil {
		return nil, err
	}
	p.logger.InfoContext(ctx, "User registered", log.FieldOwnerID, u.ID)
	return p.start(u)
}

// SignIn checks the password and starts a new session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*core.Session, error) {
	u, err := p.users.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p.start(u)
}

func (p *Provider) start(u store.User) (*core.Session, error) {
	sessionID := uuid.NewString()
	token, expires, err := p.issueToken(u.ID, u.Email, sessionID)
	if err != nil {
		return nil, err
	}
	sess := &core.Session{ID: sessionID, UserID: u.ID, Email: u.Email, Token: token, ExpiresAt: expires}

	if err := p.persist(token); err != nil {
		p.logger.Error("Failed to persist session", "error", err)
	}

	p.mu.Lock()
	p.current = sess
	p.tokens.Purge()
	p.tokens.SetUntil(token, sess, expires)
	p.broadcast(core.SessionEvent{Kind: core.SignedIn, Session: sess})
	p.mu.Unlock()

	p.logger.Info("Signed in", log.FieldSessionID, sessionID, log.FieldOwnerID, u.ID)
	return sess, nil
}

// SignOut ends the current session. Signing out twice is harmless.
func (p *Provider) SignOut(context.Context) error {
	if err := p.persist(""); err != nil {
		p.logger.Error("Failed to remove session file", "error", err)
	}

	p.mu.Lock()
	prev := p.current
	p.current = nil
	p.tokens.Purge()
	p.broadcast(core.SessionEvent{Kind: core.SignedOut})
	p.mu.Unlock()

	if prev != nil {
		p.logger.Info("Signed out", log.FieldSessionID, prev.ID)
	}
	return nil
}

// Authenticate maps a bearer token to the active session. Tokens of
// earlier sessions are rejected even while their signature is still valid.
func (p *Provider) Authenticate(token string) (*core.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, core.ErrUnauthenticated
	}
	if sess, ok := p.tokens.Get(token); ok {
		return sess, nil
	}

	sess, err := p.parseToken(token)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	current := p.current
	p.mu.RUnlock()
	if !sess.SameIdentity(current) {
		return nil, fmt.Errorf("%w: session is no longer active", core.ErrUnauthenticated)
	}
	p.tokens.SetUntil(token, current, sess.ExpiresAt)
	return current, nil
}

type sessionFile struct {
	Token string `json:"token"`
}

func (p *Provider) persist(token string) error {
	if p.cfg.SessionFile == "" {
		return nil
	}
	if token == "" {
		if err := os.Remove(p.cfg.SessionFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.cfg.SessionFile), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(sessionFile{Token: token})
	if err != nil {
		return err
	}
	return os.WriteFile(p.cfg.SessionFile, data, 0o600)
}

func (p *Provider) restore() {
	if p.cfg.SessionFile == "" {
		return
	}
	data, err := os.ReadFile(p.cfg.SessionFile)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		p.logger.Warn("Cannot read session file", "error", err)
		return
	}
	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		p.logger.Warn("Ignoring malformed session file", "error", err)
		return
	}
	sess, err := p.parseToken(f.Token)
	if err != nil {
		p.logger.Info("Persisted session is no longer valid", "error", err)
		_ = p.persist("")
		return
	}
	p.current = sess
	p.logger.Info("Session restored", log.FieldSessionID, sess.ID, log.FieldOwnerID, sess.UserID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("%w: invalid email", core.ErrValidationFailed)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", core.ErrValidationFailed, minPasswordLen)
	}
	return nil
}
