// Package csp provides the CSP authorization domain types shared by the
// token cache, the auth HTTP client and the consumers of cached tokens.
package csp

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// CSP staging console endpoints. Production deployments override these
// through csp.api_token_url / csp.oauth_token_url in the config file.
const (
	DefaultAPITokenURL = "https://console-stg.cloud.vmware.com/csp/gateway/am/api/auth/api-tokens/authorize"
	DefaultOAuthURL    = "https://console-stg.cloud.vmware.com/csp/gateway/am/api/auth/authorize"
)

// Tokens is one issued credential set as returned by the CSP auth endpoints.
// A value is never mutated after decoding; a refresh produces a new value
// that supersedes the old one in the cache.
type Tokens struct {
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Lifetime returns the server-declared token lifetime. expires_in is
// authoritative; nothing here second-guesses it against wall-clock drift.
func (t *Tokens) Lifetime() time.Duration {
	if t == nil {
		return 0
	}
	return time.Duration(t.ExpiresIn) * time.Second
}

// Flow identifies which CSP authorization flow a credential uses.
type Flow string

const (
	FlowAPIToken          Flow = "api_token"
	FlowClientCredentials Flow = "client_credentials"
)

// Credential is a principal the cache can obtain tokens for: either a user
// API token or an OAuth server-to-server app. It carries everything needed
// to repeat the fetch during background refresh.
type Credential struct {
	Flow      Flow
	APIToken  string
	AppID     string
	AppSecret string
	OrgID     string
}

// APITokenCredential builds a credential for the user API token flow.
func APITokenCredential(apiToken string) Credential {
	return Credential{Flow: FlowAPIToken, APIToken: apiToken}
}

// ClientCredential builds a credential for the OAuth client credentials flow.
// orgID may be empty.
func ClientCredential(appID, appSecret, orgID string) Credential {
	return Credential{Flow: FlowClientCredentials, AppID: appID, AppSecret: appSecret, OrgID: orgID}
}

func (c Credential) principal() string {
	if c.Flow == FlowClientCredentials {
		return c.AppID
	}
	return c.APIToken
}

// CacheKey returns the cache key for the credential. The key carries the
// flow, so an API token value and an OAuth app ID can never collide even if
// the raw strings happen to be equal. The principal itself is hashed: map
// keys and timer names end up in logs and debug snapshots, raw secrets must
// not.
func (c Credential) CacheKey() string {
	sum := sha256.Sum256([]byte(c.principal()))
	return string(c.Flow) + ":" + hex.EncodeToString(sum[:])
}

// LogKey is a short form of CacheKey for log lines.
func (c Credential) LogKey() string {
	key := c.CacheKey()
	if len(key) > len(c.Flow)+1+8 {
		key = key[:len(c.Flow)+1+8]
	}
	return key
}

// Zero reports whether the credential has no principal at all.
func (c Credential) Zero() bool {
	return c.principal() == ""
}
