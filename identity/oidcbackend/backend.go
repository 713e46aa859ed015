// Package oidcbackend adapts an OpenID Connect provider to identity.Backend. Credentials
// are exchanged with the resource owner password grant; the profile (name, email, role)
// comes from the userinfo endpoint.
package oidcbackend

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-dashboard-core/identity"
	dasherrors "github.com/jrsteele09/go-dashboard-core/internal/errors"
	"github.com/jrsteele09/go-dashboard-core/internal/utils"
	"github.com/jrsteele09/go-dashboard-core/profiles"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/oauth2"
)

var _ identity.Backend = (*Backend)(nil)

type Config struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RoleClaim    string   // userinfo claim carrying the dashboard role, default "role"
	Scopes       []string // defaults to openid, profile, email
}

type Backend struct {
	provider    *oidc.Provider
	oauth       *oauth2.Config
	verifier    *oidc.IDTokenVerifier
	roleClaim   string
	broadcaster *identity.Broadcaster

	mu      sync.Mutex
	current *identity.Session
	token   *oauth2.Token
}

// New discovers the provider configuration from the issuer.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("[oidcbackend New] issuer is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("[oidcbackend New] client id is required")
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[oidcbackend New] provider discovery failed")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	roleClaim := cfg.RoleClaim
	if roleClaim == "" {
		roleClaim = "role"
	}

	return &Backend{
		provider: provider,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		verifier:    provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		roleClaim:   roleClaim,
		broadcaster: identity.NewBroadcaster(),
	}, nil
}

// GetSession returns the session held by this process. Provider sessions are not
// persisted, so a fresh process always probes as signed out.
func (b *Backend) GetSession(ctx context.Context) (*identity.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil, nil
	}
	if !b.current.ExpiresAt.IsZero() && time.Now().After(b.current.ExpiresAt) && b.token.RefreshToken == "" {
		return nil, nil
	}
	return b.current, nil
}

func (b *Backend) OnAuthStateChange(handler identity.AuthStateHandler) identity.Subscription {
	return b.broadcaster.Subscribe(handler)
}

func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	token, err := b.oauth.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, pkgerrors.Wrap(dasherrors.ErrInvalidCredentials, retrieveErr.ErrorCode)
		}
		return nil, pkgerrors.Wrap(err, "[SignInWithPassword] token request failed")
	}

	user, err := b.resolveUser(ctx, token)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[SignInWithPassword] failed to resolve user")
	}

	session := b.store(user, token)
	b.broadcaster.Emit(identity.EventSignedIn, session)
	return session, nil
}

// SignUp is not part of OpenID Connect; accounts are provisioned in the provider.
func (b *Backend) SignUp(context.Context, string, string, identity.SignUpMetadata) error {
	return pkgerrors.Wrap(dasherrors.ErrSignUpRejected, dasherrors.ErrUnsupported.Error())
}

func (b *Backend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	hadSession := b.current != nil
	b.current = nil
	b.token = nil
	b.mu.Unlock()

	if hadSession {
		b.broadcaster.Emit(identity.EventSignedOut, nil)
	}
	return ctx.Err()
}

// Refresh exchanges the refresh token for a new access token and emits TOKEN_REFRESHED.
func (b *Backend) Refresh(ctx context.Context) (*identity.Session, error) {
	b.mu.Lock()
	current, token := b.current, b.token
	b.mu.Unlock()
	if current == nil || token == nil || token.RefreshToken == "" {
		return nil, dasherrors.ErrNoSession
	}

	expired := *token
	expired.Expiry = time.Unix(1, 0)
	fresh, err := b.oauth.TokenSource(ctx, &expired).Token()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Refresh] token refresh failed")
	}

	session := b.store(current.User, fresh)
	b.broadcaster.Emit(identity.EventTokenRefreshed, session)
	return session, nil
}

// GetProfile reads the userinfo claims of the current token. Only the signed-in user's
// profile is visible to this client.
func (b *Backend) GetProfile(ctx context.Context, userID string) (*profiles.Profile, error) {
	b.mu.Lock()
	current, token := b.current, b.token
	b.mu.Unlock()
	if current == nil || token == nil || current.User.ID != userID {
		return nil, dasherrors.ErrProfileNotFound
	}

	info, err := b.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[GetProfile] userinfo request failed")
	}
	claims := map[string]any{}
	if err := info.Claims(&claims); err != nil {
		return nil, pkgerrors.Wrap(err, "[GetProfile] decode userinfo claims")
	}

	rawRole := utils.ClaimString(claims[b.roleClaim])
	if rawRole == "" {
		return nil, pkgerrors.Wrapf(dasherrors.ErrProfileNotFound, "claim %q missing", b.roleClaim)
	}
	role, _ := profiles.ParseRole(rawRole)

	name := utils.ClaimString(claims["name"])
	if name == "" {
		name = strings.TrimSpace(utils.ClaimString(claims["given_name"]) + " " + utils.ClaimString(claims["family_name"]))
	}
	email := info.Email
	if email == "" {
		email = current.User.Email
	}
	return &profiles.Profile{
		ID:        info.Subject,
		Email:     email,
		Name:      name,
		Role:      role,
		AvatarURL: utils.ClaimString(claims["picture"]),
	}, nil
}

// resolveUser prefers a verified ID token and falls back to userinfo when the provider
// returns only an access token.
func (b *Backend) resolveUser(ctx context.Context, token *oauth2.Token) (identity.User, error) {
	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := b.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return identity.User{}, pkgerrors.Wrap(dasherrors.ErrInvalidToken, err.Error())
		}
		var claims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return identity.User{}, pkgerrors.Wrap(err, "decode id token claims")
		}
		return identity.User{ID: idToken.Subject, Email: claims.Email}, nil
	}

	info, err := b.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return identity.User{}, pkgerrors.Wrap(err, "userinfo request failed")
	}
	return identity.User{ID: info.Subject, Email: info.Email}, nil
}

func (b *Backend) store(user identity.User, token *oauth2.Token) *identity.Session {
	session := &identity.Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
		User:         user,
	}
	b.mu.Lock()
	b.current = session
	b.token = token
	b.mu.Unlock()
	return session
}
