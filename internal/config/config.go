package config

import "errors"

// ErrMissingSecret is returned when no signing secret is configured.
// The server must refuse to start without one.
var ErrMissingSecret = errors.New("missing JWT_SECRET environment variable")

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetClientOrigin() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Tokens
}

// New builds the process configuration from the environment. It fails when the
// signing secret is absent so a misconfigured server never starts issuing
// tokens signed with an empty key.
func New() (Config, error) {
	secret := GetEnv(secretEnvVar, "")
	if secret == "" {
		return nil, ErrMissingSecret
	}
	c := mainConfig{Tokens: Tokens{secret: secret}}
	c.Cors = Cors{origin: c.GetClientOrigin()}
	return c, nil
}
