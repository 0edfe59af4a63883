package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const noEmailProvided = "No email provided"

// Admin check outcomes reported to a DecisionObserver.
const (
	OutcomeGranted   = "granted"
	OutcomeMissing   = "missing"
	OutcomeInvalid   = "invalid"
	OutcomeForbidden = "forbidden"
)

var (
	// ErrMissingCredential means no ID token accompanied the request.
	ErrMissingCredential = errors.New("auth: missing credential")
	// ErrInvalidCredential means the token failed verification or its subject is not an admin.
	ErrInvalidCredential = errors.New("auth: invalid credential")

	// ErrPrincipalRequired is returned by services handed a zero AdminPrincipal.
	ErrPrincipalRequired = errors.New("auth: admin principal required")

	errSubjectNotAllowed = errors.New("subject not on admin allow-list")
	errMissingVerifier   = errors.New("auth: id token verifier required")
)

// IDTokenVerifier checks an ID token with the identity provider.
type IDTokenVerifier interface {
	Verify(ctx context.Context, token string) (GoogleClaims, error)
}

// DecisionObserver receives the outcome of every admin check.
type DecisionObserver interface {
	ObserveAdminCheck(outcome string)
}

// AdminPrincipal proves the caller passed the admin check. It is only valid for
// the request that produced it.
type AdminPrincipal struct {
	subject string
	email   string
}

// Subject returns the provider issued subject identifier.
func (p AdminPrincipal) Subject() string {
	return p.subject
}

// Valid reports whether the principal came out of a successful admin check.
func (p AdminPrincipal) Valid() bool {
	return p.subject != ""
}

// Email returns the caller email, or "" when the token carried none.
func (p AdminPrincipal) Email() string {
	return p.email
}

// AdminGateConfig bundles the dependencies of an AdminGate.
type AdminGateConfig struct {
	Verifier  IDTokenVerifier
	AllowList AllowList
	Observer  DecisionObserver
	Logger    *zap.Logger
}

// AdminGate authorizes mutating operations against the admin allow-list.
type AdminGate struct {
	verifier  IDTokenVerifier
	allowList AllowList
	observer  DecisionObserver
	logger    *zap.Logger
}

// NewAdminGate constructs an AdminGate.
func NewAdminGate(cfg AdminGateConfig) (*AdminGate, error) {
	if cfg.Verifier == nil {
		return nil, errMissingVerifier
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AllowList.Len() == 0 {
		logger.Warn("admin allow-list is empty; every admin request will be denied")
	}
	return &AdminGate{
		verifier:  cfg.Verifier,
		allowList: cfg.AllowList,
		observer:  cfg.Observer,
		logger:    logger,
	}, nil
}

// Authorize verifies the credential and checks its subject against the allow-list.
// Every decision is logged; fields are appended to the audit entry.
func (g *AdminGate) Authorize(ctx context.Context, credential string, fields ...zap.Field) (AdminPrincipal, error) {
	token := strings.TrimSpace(credential)
	if token == "" {
		g.deny(OutcomeMissing, noEmailProvided, "", nil, fields)
		return AdminPrincipal{}, ErrMissingCredential
	}

	claims, err := g.verifier.Verify(ctx, token)
	if err != nil {
		g.deny(OutcomeInvalid, noEmailProvided, "", err, fields)
		return AdminPrincipal{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	email := claims.Email
	if email == "" {
		email = noEmailProvided
	}
	if !g.allowList.Contains(claims.Subject) {
		g.deny(OutcomeForbidden, email, claims.Subject, errSubjectNotAllowed, fields)
		return AdminPrincipal{}, fmt.Errorf("%w: %w", ErrInvalidCredential, errSubjectNotAllowed)
	}

	g.observe(OutcomeGranted)
	g.logger.Info("admin access granted",
		append([]zap.Field{zap.String("email", email), zap.String("subject", claims.Subject)}, fields...)...)
	return AdminPrincipal{subject: claims.Subject, email: claims.Email}, nil
}

func (g *AdminGate) deny(outcome, email, subject string, err error, fields []zap.Field) {
	g.observe(outcome)
	attrs := []zap.Field{
		zap.String("email", email),
		zap.String("subject", subject),
		zap.String("outcome", outcome),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	g.logger.Warn("admin access denied", attrs...)
}

func (g *AdminGate) observe(outcome string) {
	if g.observer != nil {
		g.observer.ObserveAdminCheck(outcome)
	}
}
