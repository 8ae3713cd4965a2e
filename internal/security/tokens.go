package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, tampered with, expired, or of the wrong kind.
	// Callers never learn which of those it was.
	ErrInvalidToken = errors.New("invalid token")
)

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	TokenUse    string   `json:"token_use"`
}

// RefreshClaims holds JWT claims for the refresh token. It carries no authority claims.
type RefreshClaims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"token_use"`
}

// IssuedToken is a signed token together with its id and expiry.
type IssuedToken struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// TokenIssuer mints and verifies HS256 access and refresh tokens with a process-wide symmetric key.
// It holds no mutable state and is safe for concurrent use.
type TokenIssuer struct {
	key        []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer returns a TokenIssuer signing with key. key must be at least MinSecretLength bytes.
// issuer and audience are set on every token and required on verification.
func NewTokenIssuer(key []byte, issuer, audience string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if len(key) < MinSecretLength {
		return nil, ErrInvalidKey
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &TokenIssuer{
		key:        k,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenIssuer) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *TokenIssuer) RefreshTTL() time.Duration { return p.refreshTTL }

// MintAccess issues a short-lived access token for subject carrying role and the effective permission set.
func (p *TokenIssuer) MintAccess(subject, role string, permissions []string) (IssuedToken, error) {
	jti, err := generateJTI()
	if err != nil {
		return IssuedToken{}, err
	}
	now := p.now().UTC()
	expiresAt := expiry(now, p.accessTTL)
	perms := make([]string, len(permissions))
	copy(perms, permissions)
	claims := AccessClaims{
		RegisteredClaims: p.registered(jti, subject, now, expiresAt),
		Role:             role,
		Permissions:      perms,
		TokenUse:         tokenUseAccess,
	}
	token, err := p.sign(claims)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Value: token, ID: jti, ExpiresAt: expiresAt}, nil
}

// MintRefresh issues a long-lived refresh token carrying only the subject and timing claims.
func (p *TokenIssuer) MintRefresh(subject string) (IssuedToken, error) {
	jti, err := generateJTI()
	if err != nil {
		return IssuedToken{}, err
	}
	now := p.now().UTC()
	expiresAt := expiry(now, p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: p.registered(jti, subject, now, expiresAt),
		TokenUse:         tokenUseRefresh,
	}
	token, err := p.sign(claims)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Value: token, ID: jti, ExpiresAt: expiresAt}, nil
}

// Verify parses and validates an access token (signature, alg, exp, iss, aud, token_use).
func (p *TokenIssuer) Verify(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenUse != tokenUseAccess || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh parses and validates a refresh token.
func (p *TokenIssuer) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenUse != tokenUseRefresh || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractSubject returns the subject of a valid access token.
func (p *TokenIssuer) ExtractSubject(tokenString string) (string, error) {
	claims, err := p.Verify(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// expiry returns now+ttl at the whole-second precision of the JWT exp claim, so IssuedToken.ExpiresAt
// and the signed claim agree.
func expiry(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl).Truncate(jwt.TimePrecision)
}

func (p *TokenIssuer) registered(jti, subject string, now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        jti,
		Subject:   subject,
		Issuer:    p.issuer,
		Audience:  jwt.ClaimStrings{p.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func (p *TokenIssuer) sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(p.key)
}

func (p *TokenIssuer) parse(tokenString string, claims jwt.Claims) error {
	if tokenString == "" {
		return ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return p.key, nil
	}, opts...)
	if err != nil {
		return err
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
