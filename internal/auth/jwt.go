package auth

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles recognised by the API.
const (
	RoleAgent         = "agent"
	RoleDecisionMaker = "decision_maker"
	RoleAdmin         = "admin"
)

// Claims carries the principal issued by the identity service. Older tokens carry a
// single Role; newer ones a Roles list. Both are honoured.
type Claims struct {
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`

	jwt.RegisteredClaims
}

// Principal is the authenticated caller: an opaque id plus a role set.
type Principal struct {
	ID    string
	Roles []string
}

// Has reports whether p holds role. Admins hold every role.
func (p Principal) Has(role string) bool {
	return slices.Contains(p.Roles, role) || slices.Contains(p.Roles, RoleAdmin)
}

// Principal normalises the claims into a Principal.
func (c Claims) Principal() Principal {
	roles := make([]string, 0, len(c.Roles)+1)
	add := func(r string) {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" && !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}
	add(c.Role)
	for _, r := range c.Roles {
		add(r)
	}
	slices.Sort(roles)
	return Principal{ID: c.Subject, Roles: roles}
}

// JWT signs and verifies HS256 tokens.
type JWT struct {
	Secret   []byte
	Issuer   string
	TokenTTL time.Duration
}

func (j JWT) Sign(claims Claims) (token string, expiresAt time.Time, err error) {
	if len(j.Secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret not configured")
	}
	now := time.Now().UTC()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.NotBefore == nil {
		claims.NotBefore = jwt.NewNumericDate(now.Add(-5 * time.Second))
	}
	if claims.ExpiresAt == nil {
		ttl := j.TokenTTL
		if ttl <= 0 {
			ttl = time.Hour
		}
		expiresAt = now.Add(ttl)
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	} else {
		expiresAt = claims.ExpiresAt.Time
	}
	if claims.Issuer == "" {
		claims.Issuer = j.Issuer
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, expiresAt, nil
}

func (j JWT) Verify(token string) (Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return j.Secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, err
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if strings.TrimSpace(c.Subject) == "" {
		return Claims{}, errors.New("token has no subject")
	}
	return *c, nil
}
