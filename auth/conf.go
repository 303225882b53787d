package auth

import (
	"fmt"
	"time"
)

// Operator is a dispatcher account allowed to log in.
type Operator struct {
	Username string `json:"username"`
	// PasswordHash is a bcrypt hash, see HashPassword.
	PasswordHash string `json:"password_hash"`
	Role         string `json:"role"`
}

// Conf represents the configuration needed for authentication.
type Conf struct {
	// Enabled protects the dispatcher routes with bearer tokens.
	Enabled   bool          `json:"enabled"`
	Secret    string        `json:"secret"`
	Issuer    string        `json:"issuer"`
	TokenTTL  time.Duration `json:"token_ttl"`
	Operators []Operator    `json:"operators"`
}

// SetDefaults fills issuer and token lifetime.
func (c *Conf) SetDefaults() {
	if c.Issuer == "" {
		c.Issuer = "dockyard"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 12 * time.Hour
	}
	for i := range c.Operators {
		if c.Operators[i].Role == "" {
			c.Operators[i].Role = RoleDispatcher
		}
	}
}

// Validate checks the settings when authentication is enabled.
func (c Conf) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Secret) < 16 {
		return fmt.Errorf("auth.secret must be at least 16 characters")
	}
	for _, op := range c.Operators {
		if op.Username == "" || op.PasswordHash == "" {
			return fmt.Errorf("auth.operators entries need username and password_hash")
		}
	}
	return nil
}
