package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// HeaderAPIKey is the header containing the caller's API key identifier.
	HeaderAPIKey = "X-Api-Key"
	// HeaderTimestamp is the unix timestamp (seconds) used when signing the request.
	HeaderTimestamp = "X-Timestamp"
	// HeaderNonce provides replay protection when combined with the timestamp.
	HeaderNonce = "X-Nonce"
	// HeaderSignature carries the hex-encoded HMAC-SHA256 signature for the request.
	HeaderSignature = "X-Signature"
	// MaxBodyForSignature is the maximum body size hashed when authenticating.
	MaxBodyForSignature = 1 << 20 // 1 MiB

	defaultNonceWindow   = 10 * time.Minute
	defaultNonceCapacity = 4096
)

// Principal represents an authenticated API client.
type Principal struct {
	APIKey string
}

// Authenticator verifies API key + HMAC signatures on incoming requests.
// Nonces are held in a bounded in-memory window; replays inside the window
// are rejected.
type Authenticator struct {
	secrets map[string]string
	skew    time.Duration
	nowFn   func() time.Time

	nonceMu sync.Mutex
	nonces  map[string]time.Time
}

// NewAuthenticator builds an Authenticator keyed by the provided secrets:
// API key identifiers mapped to their shared secret.
func NewAuthenticator(secrets map[string]string, skew time.Duration, nowFn func() time.Time) *Authenticator {
	cloned := make(map[string]string, len(secrets))
	for k, v := range secrets {
		cloned[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if skew <= 0 {
		skew = 2 * time.Minute
	}
	return &Authenticator{
		secrets: cloned,
		skew:    skew,
		nowFn:   nowFn,
		nonces:  make(map[string]time.Time),
	}
}

// Enabled reports whether any API keys are configured.
func (a *Authenticator) Enabled() bool {
	return a != nil && len(a.secrets) > 0
}

// Authenticate validates headers and signature, returning the caller principal.
func (a *Authenticator) Authenticate(r *http.Request, body []byte) (*Principal, error) {
	if len(body) > MaxBodyForSignature {
		return nil, fmt.Errorf("request body exceeds %d bytes", MaxBodyForSignature)
	}
	apiKey := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
	if apiKey == "" {
		return nil, errors.New("missing X-Api-Key header")
	}
	secret, ok := a.secrets[apiKey]
	if !ok || secret == "" {
		return nil, errors.New("unknown API key")
	}
	timestampHeader := strings.TrimSpace(r.Header.Get(HeaderTimestamp))
	if timestampHeader == "" {
		return nil, errors.New("missing X-Timestamp header")
	}
	secs, err := strconv.ParseInt(timestampHeader, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}
	now := a.nowFn().UTC()
	drift := now.Sub(time.Unix(secs, 0).UTC())
	if drift < 0 {
		drift = -drift
	}
	if drift > a.skew {
		return nil, fmt.Errorf("timestamp outside allowed skew of %s", a.skew)
	}
	nonce := strings.TrimSpace(r.Header.Get(HeaderNonce))
	if nonce == "" {
		return nil, errors.New("missing X-Nonce header")
	}
	providedSig := strings.TrimSpace(r.Header.Get(HeaderSignature))
	if providedSig == "" {
		return nil, errors.New("missing X-Signature header")
	}
	expected := ComputeSignature(secret, timestampHeader, nonce, r.Method, CanonicalRequestPath(r), body)
	providedBytes, err := hex.DecodeString(providedSig)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if !hmac.Equal(providedBytes, expected) {
		return nil, errors.New("invalid signature")
	}
	if a.registerNonce(apiKey+"|"+timestampHeader+"|"+nonce, now) {
		return nil, errors.New("nonce already used")
	}
	return &Principal{APIKey: apiKey}, nil
}

// registerNonce records the nonce, reporting true when it was already seen
// inside the replay window. Expired entries are pruned opportunistically.
func (a *Authenticator) registerNonce(composite string, now time.Time) bool {
	a.nonceMu.Lock()
	defer a.nonceMu.Unlock()
	if seen, ok := a.nonces[composite]; ok && now.Sub(seen) < defaultNonceWindow {
		return true
	}
	if len(a.nonces) >= defaultNonceCapacity {
		for key, seen := range a.nonces {
			if now.Sub(seen) >= defaultNonceWindow {
				delete(a.nonces, key)
			}
		}
	}
	a.nonces[composite] = now
	return false
}

// CanonicalRequestPath returns the signing path: URL path plus the
// lexicographically sorted query string.
func CanonicalRequestPath(r *http.Request) string {
	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	if r.URL.RawQuery != "" {
		parts := strings.Split(r.URL.RawQuery, "&")
		sort.Strings(parts)
		path += "?" + strings.Join(parts, "&")
	}
	return path
}

// ComputeSignature derives the expected HMAC for the request contents.
func ComputeSignature(secret, timestamp, nonce, method, path string, body []byte) []byte {
	payload := strings.Join([]string{timestamp, nonce, strings.ToUpper(method), path, string(body)}, "\n")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
