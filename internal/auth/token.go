package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/softeno/permission-template/internal"
)

// RolePrefix is prepended to every realm role before authorization checks.
const RolePrefix = "ROLE_"

// Claims is the subset of an identity provider access token this service reads.
type Claims struct {
	jwt.RegisteredClaims
	PreferredUsername string      `json:"preferred_username,omitempty"`
	RealmAccess       RealmAccess `json:"realm_access"`
}

type RealmAccess struct {
	Roles []string `json:"roles"`
}

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Roles   []string
}

func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Verifier checks bearer tokens issued elsewhere. It never issues tokens.
type Verifier struct {
	rsaKey  *rsa.PublicKey
	secret  []byte
	issuer  string
	methods []string
}

func NewVerifier(cfg internal.SecurityConfig) (*Verifier, error) {
	v := &Verifier{issuer: cfg.Issuer}
	if cfg.JWTPublicKey != "" {
		key, err := cfg.GetPublicKey()
		if err != nil {
			return nil, fmt.Errorf("load jwt public key: %w", err)
		}
		v.rsaKey = key
		v.methods = append(v.methods, jwt.SigningMethodRS256.Alg())
	}
	if cfg.JWTSecret != "" {
		v.secret = []byte(cfg.JWTSecret)
		v.methods = append(v.methods, jwt.SigningMethodHS256.Alg())
	}
	if len(v.methods) == 0 {
		return nil, errors.New("either jwt_public_key or jwt_secret must be set")
	}
	return v, nil
}

// NewHMACVerifier verifies HS256 tokens signed with secret.
func NewHMACVerifier(secret []byte, issuer string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer, methods: []string{jwt.SigningMethodHS256.Alg()}}
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(tokenString string) (*Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods(v.methods), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.key, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.NewUnauthorizedError("Invalid token", internal.ErrCodeInvalidToken).WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, internal.ErrInvalidToken
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.PreferredUsername
	}
	if subject == "" {
		subject = internal.SystemActor
	}
	return &Principal{Subject: subject, Roles: PrefixRoles(claims.RealmAccess.Roles)}, nil
}

func (v *Verifier) key(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodRSA:
		if v.rsaKey != nil {
			return v.rsaKey, nil
		}
	case *jwt.SigningMethodHMAC:
		if v.secret != nil {
			return v.secret, nil
		}
	}
	return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
}

// PrefixRoles maps realm roles to authorities, e.g. "admin" to "ROLE_ADMIN".
func PrefixRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		out = append(out, RolePrefix+strings.ToUpper(role))
	}
	return out
}
