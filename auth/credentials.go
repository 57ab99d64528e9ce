// Package auth holds the single admin identity: credential checks, signed
// admin tokens carried in a cookie, and login throttling.
package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"portfolio/config"
)

// Credentials is the one configured admin account.
type Credentials struct {
	username     string
	password     string
	passwordHash []byte
}

func NewCredentials(cfg *config.Config) *Credentials {
	c := &Credentials{
		username: cfg.AdminUsername,
		password: cfg.AdminPassword,
	}
	if cfg.AdminPasswordHash != "" {
		c.passwordHash = []byte(cfg.AdminPasswordHash)
	}
	return c
}

func (c *Credentials) Username() string {
	return c.username
}

// Check reports whether username and password match the admin account.
// A configured bcrypt hash takes precedence over the plain password.
func (c *Credentials) Check(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1

	var passOK bool
	if c.passwordHash != nil {
		passOK = bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(c.password)) == 1
	}
	return userOK && passOK
}
