package config

import "time"

type Session struct{}

var _ SessionConfig = Session{}

// GetIdentityDriver selects the identity backend: "fake" or "oidc"
func (Session) GetIdentityDriver() string {
	return GetEnv("IDENTITY_DRIVER", "fake")
}

func (Session) GetOidcIssuer() string {
	return GetEnv("OIDC_ISSUER", "")
}

func (Session) GetOidcClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (Session) GetOidcClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

// GetOidcRoleClaim is the userinfo claim that carries the dashboard role
func (Session) GetOidcRoleClaim() string {
	return GetEnv("OIDC_ROLE_CLAIM", "role")
}

// GetTokenSecret is the HMAC key used by the fake backend to sign access tokens
func (Session) GetTokenSecret() string {
	return GetEnv("TOKEN_SECRET", "dev-only-secret")
}

// GetProfileWait bounds how long the route gate waits for a profile before giving up
func (Session) GetProfileWait() time.Duration {
	return GetDuration("PROFILE_WAIT", 5*time.Second)
}

func (Session) GetProfileLookupTimeout() time.Duration {
	return GetDuration("PROFILE_LOOKUP_TIMEOUT", 10*time.Second)
}
