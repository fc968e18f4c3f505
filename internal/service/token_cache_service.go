package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Wei-Shaw/csp2api/internal/config"
	"github.com/Wei-Shaw/csp2api/internal/pkg/csp"
)

// ErrTokenUnavailable is returned when a principal has no usable token: the
// last fetch failed and no earlier fetch ever succeeded. A retry is already
// armed; callers should treat this as a normal outcome, not a fault.
var ErrTokenUnavailable = errors.New("csp token unavailable")

// TokenCacheService keeps one fresh CSP token set per principal.
//
//   - First request for a principal fetches synchronously; every caller that
//     arrives during that fetch shares its outcome (singleflight, at most one
//     fetch in flight per key).
//   - After any fetch the entry arms a one-shot refresh: expires_in minus the
//     clock-skew margin on success, the fixed retry delay on failure. The
//     refresh task re-arms itself until Release or Stop.
//   - A failed refresh never evicts a previously good record; stale beats
//     absent. A failed first fetch leaves the entry recordless with the retry
//     loop armed.
type TokenCacheService struct {
	client     CSPAuthClient
	clockSkew  time.Duration
	retryDelay time.Duration

	mu      sync.RWMutex
	entries map[string]*tokenCacheEntry

	sf    singleflight.Group
	sched *refreshScheduler

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

type tokenCacheEntry struct {
	cred      csp.Credential
	tokens    *csp.Tokens // nil until the first successful fetch
	fetchedAt time.Time
	refreshes uint64
	failures  uint64
	lastError string
}

// NewTokenCacheService builds the cache from config. The cache owns its
// scheduler and refresh lifetime; Stop tears both down.
func NewTokenCacheService(cfg *config.Config, client CSPAuthClient) (*TokenCacheService, error) {
	sched, err := newRefreshScheduler()
	if err != nil {
		return nil, fmt.Errorf("token cache scheduler: %w", err)
	}
	return newTokenCacheService(cfg.CSP.ClockSkew(), cfg.CSP.RetryDelay(), client, sched), nil
}

func newTokenCacheService(clockSkew, retryDelay time.Duration, client CSPAuthClient, sched *refreshScheduler) *TokenCacheService {
	ctx, cancel := context.WithCancel(context.Background())
	return &TokenCacheService{
		client:     client,
		clockSkew:  clockSkew,
		retryDelay: retryDelay,
		entries:    make(map[string]*tokenCacheEntry),
		sched:      sched,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// GetTokenByAPIToken returns the cached token set for a user API token,
// fetching synchronously on first access.
func (s *TokenCacheService) GetTokenByAPIToken(ctx context.Context, apiToken string) (*csp.Tokens, error) {
	return s.getToken(ctx, csp.APITokenCredential(apiToken))
}

// GetTokenByClientCredentials returns the cached token set for an OAuth
// server-to-server app, fetching synchronously on first access.
func (s *TokenCacheService) GetTokenByClientCredentials(ctx context.Context, appID, appSecret, orgID string) (*csp.Tokens, error) {
	return s.getToken(ctx, csp.ClientCredential(appID, appSecret, orgID))
}

// GetToken resolves an already-built credential through the cache.
func (s *TokenCacheService) GetToken(ctx context.Context, cred csp.Credential) (*csp.Tokens, error) {
	return s.getToken(ctx, cred)
}

func (s *TokenCacheService) getToken(ctx context.Context, cred csp.Credential) (*csp.Tokens, error) {
	if cred.Zero() {
		return nil, errors.New("empty credential")
	}
	key := cred.CacheKey()

	s.mu.RLock()
	entry, ok := s.entries[key]
	if ok {
		tokens := entry.tokens
		lastError := entry.lastError
		s.mu.RUnlock()
		if tokens == nil {
			// 首次获取失败过，重试已由调度器接管，这里不做同步重试
			return nil, fmt.Errorf("%w: %s", ErrTokenUnavailable, lastError)
		}
		return tokens, nil
	}
	s.mu.RUnlock()

	// Cache miss. All concurrent first-time callers for this key share one
	// fetch; the entry and its refresh schedule are installed exactly once.
	v, err, _ := s.sf.Do(key, func() (any, error) {
		tokens, fetchErr := s.fetch(ctx, cred)
		s.install(cred, tokens, fetchErr)
		return tokens, fetchErr
	})
	if err != nil {
		return nil, err
	}
	return v.(*csp.Tokens), nil
}

// Release tears down one principal's entry and its refresh loop. Returns
// false if the principal was not cached.
func (s *TokenCacheService) Release(cred csp.Credential) bool {
	return s.ReleaseKey(cred.CacheKey())
}

// ReleaseKey is Release addressed by cache key, as exposed in snapshots.
func (s *TokenCacheService) ReleaseKey(key string) bool {
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	s.sched.Cancel(key)
	if ok {
		log.Printf("[TokenCache] released key=%s", shortKey(key))
	}
	return ok
}

// Stop cancels all background refresh work. In-flight fetches finish or get
// abandoned; the entry map stays consistent either way.
func (s *TokenCacheService) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.sched.Stop()
		log.Printf("[TokenCache] stopped")
	})
}

func (s *TokenCacheService) fetch(ctx context.Context, cred csp.Credential) (*csp.Tokens, error) {
	if cred.Flow == csp.FlowClientCredentials {
		return s.client.FetchByClientCredentials(ctx, cred.AppID, cred.AppSecret, cred.OrgID)
	}
	return s.client.FetchByAPIToken(ctx, cred.APIToken)
}

// install records the outcome of a first-access fetch and arms the refresh
// loop for the key.
func (s *TokenCacheService) install(cred csp.Credential, tokens *csp.Tokens, fetchErr error) {
	key := cred.CacheKey()

	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		entry = &tokenCacheEntry{cred: cred}
		s.entries[key] = entry
	}
	if fetchErr == nil {
		entry.tokens = tokens
		entry.fetchedAt = time.Now()
		entry.lastError = ""
	} else {
		entry.failures++
		entry.lastError = fetchErr.Error()
	}
	s.mu.Unlock()

	s.armRefresh(key, s.nextDelay(tokens, fetchErr))
}

// refreshEntry is the scheduled refresh task for one key. Regardless of
// outcome it re-arms itself, forever, until the key is released or the
// cache stops.
func (s *TokenCacheService) refreshEntry(key string) {
	if s.ctx.Err() != nil {
		return
	}

	s.mu.RLock()
	entry, ok := s.entries[key]
	var cred csp.Credential
	if ok {
		cred = entry.cred
	}
	s.mu.RUnlock()
	if !ok {
		// released while the timer was armed
		return
	}

	tokens, err := s.fetch(s.ctx, cred)

	s.mu.Lock()
	entry, ok = s.entries[key]
	if !ok {
		// released during the fetch; drop the result, do not re-arm
		s.mu.Unlock()
		return
	}
	if err == nil {
		entry.tokens = tokens
		entry.fetchedAt = time.Now()
		entry.refreshes++
		entry.lastError = ""
	} else {
		// 刷新失败保留旧 token：stale 优于缺失
		entry.failures++
		entry.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		log.Printf("[TokenCache] refresh failed key=%s, retrying in %s: %v", shortKey(key), s.retryDelay, err)
	} else {
		log.Printf("[TokenCache] refreshed key=%s expires_in=%ds", shortKey(key), tokens.ExpiresIn)
	}

	s.armRefresh(key, s.nextDelay(tokens, err))
}

func (s *TokenCacheService) armRefresh(key string, delay time.Duration) {
	if s.ctx.Err() != nil {
		return
	}
	s.sched.Schedule(key, delay, func() { s.refreshEntry(key) })
}

func (s *TokenCacheService) nextDelay(tokens *csp.Tokens, fetchErr error) time.Duration {
	if fetchErr != nil {
		return s.retryDelay
	}
	// 可能为负（expires_in 落在 skew 窗口内），调度器会立即执行
	return tokens.Lifetime() - s.clockSkew
}

// EntrySnapshot is a redacted view of one cache entry for ops endpoints.
// It never carries token material.
type EntrySnapshot struct {
	Key       string    `json:"key"`
	Flow      csp.Flow  `json:"flow"`
	HasToken  bool      `json:"has_token"`
	TokenType string    `json:"token_type,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	ExpiresIn int64     `json:"expires_in,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitzero"`
	Refreshes uint64    `json:"refreshes"`
	Failures  uint64    `json:"failures"`
	LastError string    `json:"last_error,omitempty"`
}

// Snapshot returns a redacted view of all entries.
func (s *TokenCacheService) Snapshot() []EntrySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EntrySnapshot, 0, len(s.entries))
	for key, entry := range s.entries {
		snap := EntrySnapshot{
			Key:       key,
			Flow:      entry.cred.Flow,
			HasToken:  entry.tokens != nil,
			FetchedAt: entry.fetchedAt,
			Refreshes: entry.refreshes,
			Failures:  entry.failures,
			LastError: entry.lastError,
		}
		if entry.tokens != nil {
			snap.TokenType = entry.tokens.TokenType
			snap.Scope = entry.tokens.Scope
			snap.ExpiresIn = entry.tokens.ExpiresIn
		}
		out = append(out, snap)
	}
	return out
}

func shortKey(key string) string {
	const max = 24
	if len(key) > max {
		return key[:max]
	}
	return key
}
