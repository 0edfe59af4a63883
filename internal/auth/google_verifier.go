package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	googleIssuerHTTPS = "https://accounts.google.com"
	googleIssuerBare  = "accounts.google.com"

	// Google ID tokens are minted for one hour; a little skew is tolerated.
	tokenClockSkew = 30 * time.Second
)

var (
	// ErrInvalidVerifierConfig wraps every construction error of GoogleVerifier.
	ErrInvalidVerifierConfig = errors.New("auth: invalid google verifier config")

	errMissingToken     = errors.New("id token must not be empty")
	errMissingAudience  = errors.New("client id is required")
	errMissingJWKSURL   = errors.New("jwks url is required")
	errNoAllowedIssuers = errors.New("at least one issuer must be allowed")
	errMissingKeyID     = errors.New("id token header carries no kid")
	errUntrustedIssuer  = errors.New("id token issued by an untrusted party")
	errMissingSubject   = errors.New("id token carries no subject")
)

// GoogleVerifierConfig configures a GoogleVerifier. Audience is the OAuth client id
// the newsroom editor signs in with.
type GoogleVerifierConfig struct {
	Audience       string
	JWKSURL        string
	AllowedIssuers []string
	HTTPClient     *http.Client
	// CacheTTL bounds how long signing keys are trusted when the JWKS response
	// carries no max-age.
	CacheTTL time.Duration
	Logger   *zap.Logger
	Clock    func() time.Time
}

// GoogleClaims is the part of a verified ID token the admin gate needs.
type GoogleClaims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Audience      string
	Issuer        string
	Expiry        time.Time
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// GoogleVerifier checks Google ID tokens locally against Google's published signing keys.
type GoogleVerifier struct {
	audience string
	issuers  map[string]struct{}
	keys     *keySet
	parser   *jwt.Parser
	logger   *zap.Logger
}

// NewGoogleVerifier validates cfg and builds a verifier. Keys are fetched lazily on
// the first Verify.
func NewGoogleVerifier(cfg GoogleVerifierConfig) (*GoogleVerifier, error) {
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidVerifierConfig, errMissingAudience)
	}
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidVerifierConfig, errMissingJWKSURL)
	}

	issuers, err := issuerSet(cfg.AllowedIssuers)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &GoogleVerifier{
		audience: audience,
		issuers:  issuers,
		keys:     newKeySet(jwksURL, cfg.HTTPClient, cfg.CacheTTL, clock, logger),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(tokenClockSkew),
			jwt.WithTimeFunc(clock),
		),
		logger: logger,
	}, nil
}

func issuerSet(configured []string) (map[string]struct{}, error) {
	if len(configured) == 0 {
		return map[string]struct{}{googleIssuerHTTPS: {}, googleIssuerBare: {}}, nil
	}
	issuers := make(map[string]struct{}, len(configured))
	for _, issuer := range configured {
		if trimmed := strings.TrimSpace(issuer); trimmed != "" {
			issuers[trimmed] = struct{}{}
		}
	}
	if len(issuers) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidVerifierConfig, errNoAllowedIssuers)
	}
	return issuers, nil
}

// Verify checks signature, audience, expiry and issuer of rawToken and returns its
// identity claims.
func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (GoogleClaims, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return GoogleClaims{}, errMissingToken
	}

	claims := &idTokenClaims{}
	if _, err := v.parser.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		keyID, _ := token.Header["kid"].(string)
		if keyID == "" {
			return nil, errMissingKeyID
		}
		return v.keys.lookup(ctx, keyID)
	}); err != nil {
		return GoogleClaims{}, err
	}

	if _, trusted := v.issuers[claims.Issuer]; !trusted {
		return GoogleClaims{}, fmt.Errorf("%w: %q", errUntrustedIssuer, claims.Issuer)
	}
	if claims.Subject == "" {
		return GoogleClaims{}, errMissingSubject
	}

	return GoogleClaims{
		Subject:       claims.Subject,
		Email:         strings.TrimSpace(claims.Email),
		EmailVerified: claims.EmailVerified,
		Audience:      v.audience,
		Issuer:        claims.Issuer,
		Expiry:        claims.ExpiresAt.Time,
	}, nil
}
