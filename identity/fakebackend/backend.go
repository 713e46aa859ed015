// Package fakebackend is an in-memory identity provider. It issues signed access tokens,
// keeps bcrypt password hashes and materialises profiles from sign up metadata. It backs
// local runs and tests.
package fakebackend

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-dashboard-core/identity"
	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/profiles"
	fakeprofilerepo "github.com/jrsteele09/go-dashboard-core/profiles/repofake"
	"github.com/pkg/errors"
)

var _ identity.Backend = (*Backend)(nil)

const (
	defaultIssuer   = "dashboard-fake-identity"
	defaultTokenTTL = time.Hour
)

type account struct {
	id           string
	email        string
	passwordHash string
	metadata     identity.SignUpMetadata
}

// ProfileLookupHook runs before every profile lookup. Tests use it to delay, reorder or
// fail lookups.
type ProfileLookupHook func(ctx context.Context, userID string) error

type Backend struct {
	mu       sync.Mutex
	accounts map[string]*account // email -> account
	current  *identity.Session

	profiles    profiles.Repo
	tokens      *tokenIssuer
	broadcaster *identity.Broadcaster

	lookupHook     ProfileLookupHook
	materialize    func(fn func())
	signOutFailure error
}

// Option defines a function type to modify the Backend instance.
type Option func(*Backend)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(b *Backend) {
		b.tokens.now = nowFunc
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.tokens.ttl = ttl
	}
}

func WithSecret(secret string) Option {
	return func(b *Backend) {
		b.tokens.secret = []byte(secret)
	}
}

func WithProfileRepo(repo profiles.Repo) Option {
	return func(b *Backend) {
		b.profiles = repo
	}
}

func WithProfileLookupHook(hook ProfileLookupHook) Option {
	return func(b *Backend) {
		b.lookupHook = hook
	}
}

// WithDeferredProfiles hands profile materialisation after sign up to run, so tests can
// observe the window where a session exists without a profile.
func WithDeferredProfiles(run func(fn func())) Option {
	return func(b *Backend) {
		b.materialize = run
	}
}

// WithSignOutFailure makes the remote part of SignOut fail after the local session is dropped
func WithSignOutFailure(err error) Option {
	return func(b *Backend) {
		b.signOutFailure = err
	}
}

func New(options ...Option) *Backend {
	b := &Backend{
		accounts:    make(map[string]*account),
		profiles:    fakeprofilerepo.NewFakeProfileRepo(),
		broadcaster: identity.NewBroadcaster(),
		tokens: &tokenIssuer{
			secret: randomSecret(),
			issuer: defaultIssuer,
			ttl:    defaultTokenTTL,
			now:    time.Now,
		},
		materialize: func(fn func()) { fn() },
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Profiles exposes the profile rows so callers can wire avatar uploads against them
func (b *Backend) Profiles() profiles.Repo {
	return b.profiles
}

// Seed registers an account and its profile directly, bypassing sign up events.
func (b *Backend) Seed(ctx context.Context, email, password, name string, role profiles.Role) (string, error) {
	acc, err := b.createAccount(email, password, identity.SignUpMetadata{Name: name, Role: role})
	if err != nil {
		return "", err
	}
	if err := b.upsertProfile(ctx, acc); err != nil {
		return "", err
	}
	return acc.id, nil
}

func (b *Backend) GetSession(ctx context.Context) (*identity.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	current := b.current
	b.mu.Unlock()
	if current == nil {
		return nil, nil
	}
	if _, err := b.tokens.parse(current.AccessToken); err != nil {
		// Expired or tampered tokens read as signed out
		return nil, nil
	}
	return current, nil
}

func (b *Backend) OnAuthStateChange(handler identity.AuthStateHandler) identity.Subscription {
	return b.broadcaster.Subscribe(handler)
}

func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	acc, ok := b.accounts[normaliseEmail(email)]
	b.mu.Unlock()
	if !ok || !profiles.CheckPasswordHash(password, acc.passwordHash) {
		return nil, dasherrors.ErrInvalidCredentials
	}

	session, err := b.startSession(acc)
	if err != nil {
		return nil, errors.Wrap(err, "[SignInWithPassword] failed to start session")
	}
	b.broadcaster.Emit(identity.EventSignedIn, session)
	return session, nil
}

// SignUp creates the account and signs it in. The profile row is materialised from the
// metadata by the backend, possibly after the SIGNED_IN event.
func (b *Backend) SignUp(ctx context.Context, email, password string, metadata identity.SignUpMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	acc, err := b.createAccount(email, password, metadata)
	if err != nil {
		return err
	}

	session, err := b.startSession(acc)
	if err != nil {
		return errors.Wrap(err, "[SignUp] failed to start session")
	}

	b.materialize(func() {
		_ = b.upsertProfile(context.Background(), acc)
	})
	b.broadcaster.Emit(identity.EventSignedIn, session)
	return nil
}

func (b *Backend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	hadSession := b.current != nil
	b.current = nil
	failure := b.signOutFailure
	b.mu.Unlock()

	if hadSession {
		b.broadcaster.Emit(identity.EventSignedOut, nil)
	}
	if failure != nil {
		return errors.Wrap(failure, "[SignOut] remote sign out failed")
	}
	return ctx.Err()
}

// RefreshSession reissues the access token for the current user and emits TOKEN_REFRESHED.
func (b *Backend) RefreshSession(ctx context.Context) (*identity.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	current := b.current
	var acc *account
	if current != nil {
		acc = b.accounts[normaliseEmail(current.User.Email)]
	}
	b.mu.Unlock()
	if acc == nil {
		return nil, dasherrors.ErrNoSession
	}

	session, err := b.startSession(acc)
	if err != nil {
		return nil, errors.Wrap(err, "[RefreshSession] failed to reissue token")
	}
	b.broadcaster.Emit(identity.EventTokenRefreshed, session)
	return session, nil
}

func (b *Backend) GetProfile(ctx context.Context, userID string) (*profiles.Profile, error) {
	if b.lookupHook != nil {
		if err := b.lookupHook(ctx, userID); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.profiles.Get(ctx, userID)
}

// VerifyAccessToken validates a token issued by this backend and returns its subject.
func (b *Backend) VerifyAccessToken(token string) (string, error) {
	claims, err := b.tokens.parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (b *Backend) createAccount(email, password string, metadata identity.SignUpMetadata) (*account, error) {
	email = normaliseEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.Wrap(dasherrors.ErrSignUpRejected, "invalid email")
	}
	if err := profiles.ValidatePasswordStrength(password); err != nil {
		return nil, errors.Wrap(dasherrors.ErrSignUpRejected, err.Error())
	}
	if !metadata.Role.Valid() {
		return nil, errors.Wrap(dasherrors.ErrSignUpRejected, dasherrors.ErrInvalidRole.Error())
	}
	hash, err := profiles.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.accounts[email]; exists {
		return nil, errors.Wrap(dasherrors.ErrSignUpRejected, dasherrors.ErrUserExists.Error())
	}
	acc := &account{
		id:           uuid.New().String(),
		email:        email,
		passwordHash: hash,
		metadata:     metadata,
	}
	b.accounts[email] = acc
	return acc, nil
}

func (b *Backend) startSession(acc *account) (*identity.Session, error) {
	token, expiresAt, err := b.tokens.issue(acc.id, acc.email)
	if err != nil {
		return nil, err
	}
	session := &identity.Session{
		AccessToken:  token,
		RefreshToken: randomToken(),
		ExpiresAt:    expiresAt,
		User: identity.User{
			ID:    acc.id,
			Email: acc.email,
			Metadata: map[string]string{
				"name": acc.metadata.Name,
				"role": string(acc.metadata.Role),
			},
		},
	}
	b.mu.Lock()
	b.current = session
	b.mu.Unlock()
	return session, nil
}

func (b *Backend) upsertProfile(ctx context.Context, acc *account) error {
	return b.profiles.Upsert(ctx, &profiles.Profile{
		ID:    acc.id,
		Email: acc.email,
		Name:  acc.metadata.Name,
		Role:  acc.metadata.Role,
	})
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func randomSecret() []byte {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return b
}
