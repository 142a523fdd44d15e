package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrDisabled           = errors.New("authentication is not configured")
)

// Claims represents the JWT claims
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// ScopeReports is the only scope issued today; it covers diffs and stored reports
const ScopeReports = "reports"

// Service defines the authentication service interface
type Service interface {
	Enabled() bool
	IssueToken(apiKey string) (string, time.Time, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Config holds authentication configuration
type Config struct {
	APIKeyHash    string // bcrypt hash of the accepted API key; empty disables auth
	SecretKey     string
	TokenDuration time.Duration
	Issuer        string
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		SecretKey:     "change-me-in-production",
		TokenDuration: 24 * time.Hour,
		Issuer:        "tarmac",
	}
}

// JWTService implements the Service interface
type JWTService struct {
	config Config
	now    func() time.Time
}

// NewJWTService creates a new JWT-based authentication service
func NewJWTService(config Config) *JWTService {
	if config.SecretKey == "" {
		config.SecretKey = DefaultConfig().SecretKey
	}
	if config.TokenDuration <= 0 {
		config.TokenDuration = DefaultConfig().TokenDuration
	}
	if config.Issuer == "" {
		config.Issuer = DefaultConfig().Issuer
	}

	return &JWTService{
		config: config,
		now:    time.Now,
	}
}

// Enabled reports whether an API key hash is configured
func (s *JWTService) Enabled() bool {
	return s.config.APIKeyHash != ""
}

// IssueToken exchanges a valid API key for a signed token
func (s *JWTService) IssueToken(apiKey string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrDisabled
	}
	if !CheckKey(apiKey, s.config.APIKeyHash) {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := s.now()
	expires := now.Add(s.config.TokenDuration)
	claims := &Claims{
		Scope: ScopeReports,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.SecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// HashKey hashes an API key using bcrypt
func HashKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckKey compares an API key with a hash
func CheckKey(key, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	return err == nil
}
