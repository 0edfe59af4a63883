package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultKeyTTL = 10 * time.Minute
	// A token signed with an unknown kid refetches the key set at most this often.
	minKeyRefreshInterval = 30 * time.Second
	maxJWKSBytes          = 1 << 20
)

var (
	errUnknownKeyID   = errors.New("no signing key matches the token kid")
	errNoUsableKeys   = errors.New("jwks document holds no usable RS256 signing key")
	errBadKeyEncoding = errors.New("jwk is not a valid RSA public key")
)

// keySet caches Google's signing keys. Google rotates keys with overlap and
// announces the lifetime through Cache-Control, which bounds the cache entry.
type keySet struct {
	url         string
	client      *http.Client
	fallbackTTL time.Duration
	clock       func() time.Time
	logger      *zap.Logger

	mu          sync.Mutex
	keys        map[string]*rsa.PublicKey
	expiresAt   time.Time
	lastFetchAt time.Time
}

func newKeySet(url string, client *http.Client, ttl time.Duration, clock func() time.Time, logger *zap.Logger) *keySet {
	if client == nil {
		client = http.DefaultClient
	}
	if ttl <= 0 {
		ttl = defaultKeyTTL
	}
	return &keySet{url: url, client: client, fallbackTTL: ttl, clock: clock, logger: logger}
}

// lookup returns the key for keyID, refreshing the set when it expired or when
// the kid is new and the last fetch is not too recent.
func (s *keySet) lookup(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	fresh := s.keys != nil && now.Before(s.expiresAt)
	if fresh {
		if key, ok := s.keys[keyID]; ok {
			return key, nil
		}
		if now.Sub(s.lastFetchAt) < minKeyRefreshInterval {
			return nil, errUnknownKeyID
		}
	}

	if err := s.refresh(ctx, now); err != nil {
		return nil, err
	}
	if key, ok := s.keys[keyID]; ok {
		return key, nil
	}
	return nil, errUnknownKeyID
}

func (s *keySet) refresh(ctx context.Context, now time.Time) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: unexpected status %d", response.StatusCode)
	}

	var document struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(response.Body, maxJWKSBytes)).Decode(&document); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(document.Keys))
	for _, candidate := range document.Keys {
		if !candidate.signsRS256() {
			continue
		}
		publicKey, err := candidate.publicKey()
		if err != nil {
			s.logger.Debug("ignoring jwk", zap.String("kid", candidate.KeyID), zap.Error(err))
			continue
		}
		keys[candidate.KeyID] = publicKey
	}
	if len(keys) == 0 {
		return errNoUsableKeys
	}

	s.keys = keys
	s.lastFetchAt = now
	s.expiresAt = now.Add(cacheLifetime(response.Header.Get("Cache-Control"), s.fallbackTTL))
	s.logger.Debug("google signing keys refreshed", zap.Int("keys", len(keys)), zap.Time("expires_at", s.expiresAt))
	return nil
}

// cacheLifetime reads max-age from a Cache-Control value, falling back to fallback.
func cacheLifetime(cacheControl string, fallback time.Duration) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.Trim(value, `"`))
		if err != nil || seconds <= 0 {
			return fallback
		}
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

type jsonWebKey struct {
	KeyType   string `json:"kty"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`
	Use       string `json:"use"`
	Modulus   string `json:"n"`
	Exponent  string `json:"e"`
}

func (k jsonWebKey) signsRS256() bool {
	if k.KeyType != "RSA" || k.KeyID == "" {
		return false
	}
	if k.Use != "" && k.Use != "sig" {
		return false
	}
	return k.Algorithm == "" || k.Algorithm == "RS256"
}

func (k jsonWebKey) publicKey() (*rsa.PublicKey, error) {
	modulus, err := base64.RawURLEncoding.DecodeString(k.Modulus)
	if err != nil || len(modulus) == 0 {
		return nil, fmt.Errorf("%w: modulus", errBadKeyEncoding)
	}
	exponent, err := base64.RawURLEncoding.DecodeString(k.Exponent)
	if err != nil || len(exponent) == 0 {
		return nil, fmt.Errorf("%w: exponent", errBadKeyEncoding)
	}
	e := new(big.Int).SetBytes(exponent)
	if !e.IsInt64() || e.Int64() < 3 || e.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("%w: exponent out of range", errBadKeyEncoding)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(modulus), E: int(e.Int64())}, nil
}
