package config

import "time"

type TokenConfig interface {
	GetSigningSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetBcryptCost() int
}

type Tokens struct {
	secret string
}

var _ TokenConfig = Tokens{}

func (t Tokens) GetSigningSecret() string {
	return t.secret
}

func (Tokens) GetAccessTokenExpiry() time.Duration {
	return 15 * time.Minute
}

func (Tokens) GetRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour
}

// GetBcryptCost is the work factor used when hashing new passwords.
func (Tokens) GetBcryptCost() int {
	return 10
}
