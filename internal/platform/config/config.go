package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr                 string
	PostgresDSN          string
	RedisURL             string
	CacheTTL             time.Duration
	DefaultPolicyVersion string
	JWTSigningKey        string
	JWTIssuer            string
	JWTAudience          string
	AuditQueueSize       int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("CONSENTRY_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	policyVersion := os.Getenv("CONSENTRY_POLICY_VERSION")
	if policyVersion == "" {
		policyVersion = "1.0"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}
	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "consentry"
	}
	jwtAudience := os.Getenv("JWT_AUDIENCE")
	if jwtAudience == "" {
		jwtAudience = "consentry-api"
	}

	return Server{
		Addr:                 addr,
		PostgresDSN:          os.Getenv("CONSENTRY_POSTGRES_DSN"),
		RedisURL:             os.Getenv("CONSENTRY_REDIS_URL"),
		CacheTTL:             durationEnv("CONSENTRY_CACHE_TTL", 5*time.Minute),
		DefaultPolicyVersion: policyVersion,
		JWTSigningKey:        jwtSigningKey,
		JWTIssuer:            jwtIssuer,
		JWTAudience:          jwtAudience,
		AuditQueueSize:       intEnv("CONSENTRY_AUDIT_QUEUE_SIZE", 256),
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
