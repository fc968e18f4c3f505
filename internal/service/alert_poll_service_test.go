package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Wei-Shaw/csp2api/internal/config"
	"github.com/Wei-Shaw/csp2api/internal/pkg/csp"
)

func alertTestConfig(baseURL string) *config.Config {
	return &config.Config{
		CSP: config.CSPConfig{
			ClockSkewSeconds:      60,
			RetryDelaySeconds:     10,
			RequestTimeoutSeconds: 5,
		},
		Alerts: config.AlertsConfig{
			Enabled:         true,
			BaseURL:         baseURL,
			TenantID:        "tenant-1",
			IntervalMinutes: 10,
			APIToken:        "tok-user",
			OAuthAppID:      "app-1",
			OAuthAppSecret:  "sec-1",
			OrgID:           "org-1",
		},
	}
}

func TestPollAllRelaysForEachPrincipal(t *testing.T) {
	var hits atomic.Int64
	var lastAuth, lastTenant atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		lastAuth.Store(r.Header.Get("Authorization"))
		lastTenant.Store(r.Header.Get("X-WAVEFRONT-TENANT"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1},{"id":2},{"id":3}]`))
	}))
	defer srv.Close()

	client := &scriptedClient{script: func(_ int64, flow csp.Flow) (*csp.Tokens, error) {
		return tokensWith("access-"+string(flow), 3600), nil
	}}
	cache := newTestCache(t, time.Minute, time.Second, client)

	svc := NewAlertPollService(alertTestConfig(srv.URL), cache)
	svc.pollAll()

	require.EqualValues(t, 2, hits.Load(), "one alert call per configured principal")
	require.EqualValues(t, 2, client.calls.Load())
	require.Equal(t, "Bearer access-client_credentials", lastAuth.Load())
	require.Equal(t, "tenant-1", lastTenant.Load())
}

func TestPollAllSkipsPrincipalWithoutToken(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := &scriptedClient{script: func(_ int64, flow csp.Flow) (*csp.Tokens, error) {
		if flow == csp.FlowAPIToken {
			return nil, &FetchError{StatusCode: http.StatusUnauthorized, Err: context.DeadlineExceeded}
		}
		return tokensWith("access-oauth", 3600), nil
	}}
	cache := newTestCache(t, time.Minute, time.Second, client)

	svc := NewAlertPollService(alertTestConfig(srv.URL), cache)
	svc.pollAll()

	require.EqualValues(t, 1, hits.Load(), "principal without a token must be skipped, not fatal")
}

func TestCountAlerts(t *testing.T) {
	cfg := alertTestConfig("http://unused")
	svc := NewAlertPollService(cfg, nil)

	if got := svc.countAlerts([]byte(`[{"id":1},{"id":2}]`)); got != 2 {
		t.Fatalf("countAlerts top-level array = %d, want 2", got)
	}

	cfg.Alerts.CountPath = "response.items.#"
	if got := svc.countAlerts([]byte(`{"response":{"items":[{},{},{}]}}`)); got != 3 {
		t.Fatalf("countAlerts with path = %d, want 3", got)
	}
}

func TestStartDisabledDoesNothing(t *testing.T) {
	cfg := alertTestConfig("http://unused")
	cfg.Alerts.Enabled = false

	svc := NewAlertPollService(cfg, nil)
	svc.Start() // must not schedule or panic without a cache
	require.Nil(t, svc.cron)
	svc.Stop()
}

func TestCredentialsAssembly(t *testing.T) {
	cfg := alertTestConfig("http://unused")
	svc := NewAlertPollService(cfg, nil)
	creds := svc.credentials()
	require.Len(t, creds, 2)
	require.Equal(t, csp.FlowAPIToken, creds[0].Flow)
	require.Equal(t, csp.FlowClientCredentials, creds[1].Flow)
	require.Equal(t, "org-1", creds[1].OrgID)

	cfg.Alerts.APIToken = ""
	creds = svc.credentials()
	require.Len(t, creds, 1)
	require.Equal(t, csp.FlowClientCredentials, creds[0].Flow)
}
