package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

var ErrInvalidToken = errors.New("invalid token")

// identityClaims are checked in order; Firebase ID tokens carry user_id and sub.
var identityClaims = []string{"user_id", "uid", "sub"}

type TokenClaims struct {
	Identity  string
	ExpiresAt time.Time
}

// ParseToken verifies the HS256 signature and expiry of a JWT and extracts its identity.
// An empty secret rejects every token.
func ParseToken(tokenStr, secret string) (*TokenClaims, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: no verification key configured", ErrInvalidToken)
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claimsFrom(claims)
}

// DecodeToken reads the identity and expiry without checking the signature. Only the
// terminal client uses it, on its own token; the remote backends verify it on every call.
func DecodeToken(tokenStr string) (*TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claimsFrom(claims)
}

func claimsFrom(claims jwt.MapClaims) (*TokenClaims, error) {
	out := &TokenClaims{}
	for _, name := range identityClaims {
		if v, ok := claims[name].(string); ok && v != "" {
			out.Identity = v
			break
		}
	}
	if out.Identity == "" {
		return nil, fmt.Errorf("%w: no identity claim", ErrInvalidToken)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// TokenSourcePrincipal asks an oauth2.TokenSource for a token on every Credential call.
type TokenSourcePrincipal struct {
	identity string
	source   oauth2.TokenSource
}

// NewTokenSourcePrincipal pulls one token up front to learn the identity it belongs to.
func NewTokenSourcePrincipal(source oauth2.TokenSource) (*TokenSourcePrincipal, error) {
	tok, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	claims, err := DecodeToken(tok.AccessToken)
	if err != nil {
		return nil, err
	}
	return &TokenSourcePrincipal{identity: claims.Identity, source: source}, nil
}

func (p *TokenSourcePrincipal) Identity() string { return p.identity }

func (p *TokenSourcePrincipal) Credential(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tok, err := p.source.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if !tok.Valid() {
		return "", ErrNoSession
	}
	return tok.AccessToken, nil
}

// StaticTokenSource wraps a raw ID token, reading its expiry from the JWT so oauth2 reports it invalid once expired.
func StaticTokenSource(rawToken string) oauth2.TokenSource {
	tok := &oauth2.Token{AccessToken: rawToken, TokenType: "Bearer"}
	if claims, err := DecodeToken(rawToken); err == nil {
		tok.Expiry = claims.ExpiresAt
	}
	return oauth2.StaticTokenSource(tok)
}
