package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"
)

// jwksDoc mirrors RFC 7517's JWK Set document, restricted to the fields
// an RSA verification key needs; keys of other types are skipped.
type jwksDoc struct {
	Keys []jwksKey `json:"keys"`
}

type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSCache fetches and caches a JWKS document by URI, keyed further by
// kid, with a TTL and a mutex-guarded in-flight marker so concurrent
// misses for the same URI trigger one fetch rather than a thundering
// herd. golang.org/x/sync/singleflight is not available in this module,
// so the in-flight marker is hand-rolled here — see DESIGN.md.
type JWKSCache struct {
	httpClient *http.Client
	ttl        time.Duration

	mu      sync.Mutex
	entries map[string]*jwksEntry
}

type jwksEntry struct {
	fetchedAt time.Time
	keys      map[string]any
	inFlight  chan struct{} // non-nil while a fetch is in progress
}

// NewJWKSCache builds a cache with the given TTL. A nil httpClient uses
// http.DefaultClient.
func NewJWKSCache(httpClient *http.Client, ttl time.Duration) *JWKSCache {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &JWKSCache{
		httpClient: httpClient,
		ttl:        ttl,
		entries:    make(map[string]*jwksEntry),
	}
}

// KeyFrom fetches (or reuses a cached) key by kid from the JWKS at
// jwksURI. BoundKeySource adapts it to the KeySource interface.
func (c *JWKSCache) KeyFrom(ctx context.Context, jwksURI, kid string) (any, error) {
	for {
		c.mu.Lock()
		entry, ok := c.entries[jwksURI]
		fresh := ok && time.Since(entry.fetchedAt) < c.ttl
		if ok && fresh {
			key, found := entry.keys[kid]
			if found {
				c.mu.Unlock()
				return key, nil
			}
			// Known-fresh set without this kid: refetch once in case of
			// recent rotation, rather than failing immediately.
			fresh = false
		}
		if ok && !fresh && entry.inFlight != nil {
			wait := entry.inFlight
			c.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		inFlight := make(chan struct{})
		if entry == nil {
			entry = &jwksEntry{}
			c.entries[jwksURI] = entry
		}
		entry.inFlight = inFlight
		c.mu.Unlock()

		keys, fetchErr := fetchJWKS(ctx, c.httpClient, jwksURI)

		c.mu.Lock()
		if fetchErr == nil {
			entry.keys = keys
			entry.fetchedAt = time.Now()
		}
		entry.inFlight = nil
		close(inFlight)
		c.mu.Unlock()

		if fetchErr != nil {
			return nil, fetchErr
		}
		key, found := keys[kid]
		if !found {
			return nil, fmt.Errorf("jwks: no key with kid %q at %s", kid, jwksURI)
		}
		return key, nil
	}
}

// BoundKeySource returns a KeySource fixed to a single JWKS URI, for
// wiring into Config.KeySource.
func (c *JWKSCache) BoundKeySource(jwksURI string) KeySource {
	return boundJWKS{cache: c, uri: jwksURI}
}

type boundJWKS struct {
	cache *JWKSCache
	uri   string
}

func (b boundJWKS) Key(ctx context.Context, kid string) (any, error) {
	return b.cache.KeyFrom(ctx, b.uri, kid)
}

func fetchJWKS(ctx context.Context, client *http.Client, uri string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks: unexpected status %d from %s", resp.StatusCode, uri)
	}

	var doc jwksDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("jwks: decode: %w", err)
	}

	keys := make(map[string]any, len(doc.Keys))
	for _, k := range doc.Keys {
		key, err := k.toPublicKey()
		if err != nil {
			continue
		}
		keys[k.Kid] = key
	}
	return keys, nil
}

func (k jwksKey) toPublicKey() (any, error) {
	switch k.Kty {
	case "RSA":
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, fmt.Errorf("jwks: decode n: %w", err)
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, fmt.Errorf("jwks: decode e: %w", err)
		}
		n := new(big.Int).SetBytes(nBytes)
		e := new(big.Int).SetBytes(eBytes)
		return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
	default:
		return nil, fmt.Errorf("jwks: unsupported key type %q", k.Kty)
	}
}
