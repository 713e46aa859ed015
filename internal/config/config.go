package config

import (
	"time"

	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	RealtimeConfig
	StorageConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetPublicBaseURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type SessionConfig interface {
	GetIdentityDriver() string
	GetOidcIssuer() string
	GetOidcClientID() string
	GetOidcClientSecret() string
	GetOidcRoleClaim() string
	GetTokenSecret() string
	GetProfileWait() time.Duration
	GetProfileLookupTimeout() time.Duration
}

type RealtimeConfig interface {
	GetRealtimeDriver() string
	GetRedisAddr() string
	GetPerformanceInterval() time.Duration
	GetNotificationInterval() time.Duration
}

type StorageConfig interface {
	GetStorageDriver() string
	GetS3Bucket() string
	GetS3Region() string
	GetS3Endpoint() string
	GetS3PathStyle() bool
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Realtime
	Storage
}

func New() Config {
	return mainConfig{}
}

// LoadDotEnv loads the first existing files of .env and .env.local into the process
// environment. Values already present in the environment win.
func LoadDotEnv(files ...string) (int, error) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if fileExists(f) {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}
