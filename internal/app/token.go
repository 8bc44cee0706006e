package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"market-price-alerts/internal/auth"
)

// IssueToken mints a bearer token for local testing of the API.
func (a *App) IssueToken(subject string, roles []string, ttl time.Duration) error {
	if subject == "" {
		return errors.New("--subject is required")
	}
	if ttl <= 0 {
		ttl = a.Config.Auth.TokenTTL
	}
	signer := auth.JWT{
		Secret:   []byte(a.Config.Auth.JWTSecret),
		Issuer:   a.Config.Auth.Issuer,
		TokenTTL: ttl,
	}
	token, expiresAt, err := signer.Sign(auth.Claims{
		Roles:            roles,
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, token)
	a.Logger.Info().Str("subject", subject).Strs("roles", roles).Time("expires_at", expiresAt).Msg("token issued")
	return nil
}
