package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession is the uniform rejection for any credential that does
// not verify, for whatever reason.
var ErrInvalidSession = errors.New("invalid session credential")

// Config holds the signing parameters. The secret is symmetric and
// process-wide; it must never be logged or echoed.
type Config struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Leeway time.Duration
}

// Claims is the payload embedded in a session credential.
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Manager mints and verifies session credentials. Safe for concurrent use.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 requires signing secret")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// Mint produces a signed credential for the subject, expiring TTL from now.
func (m *Manager) Mint(subjectID, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:   subjectID,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Secret)
}

// Verify checks signature and expiry. Any failure yields ErrInvalidSession;
// reasons are deliberately not distinguished to the caller.
func (m *Manager) Verify(credential string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(credential, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UID == "" {
		return nil, ErrInvalidSession
	}

	return claims, nil
}

// TTL exposes the configured validity horizon, used to size the cookie
// max-age to match the credential.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}
