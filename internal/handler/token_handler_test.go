package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wei-Shaw/csp2api/internal/config"
	"github.com/Wei-Shaw/csp2api/internal/pkg/csp"
	"github.com/Wei-Shaw/csp2api/internal/pkg/response"
	"github.com/Wei-Shaw/csp2api/internal/service"
)

type stubAuthClient struct {
	tokens *csp.Tokens
	err    error
}

func (s *stubAuthClient) FetchByAPIToken(ctx context.Context, apiToken string) (*csp.Tokens, error) {
	return s.tokens, s.err
}

func (s *stubAuthClient) FetchByClientCredentials(ctx context.Context, appID, appSecret, orgID string) (*csp.Tokens, error) {
	return s.tokens, s.err
}

func newTestRouter(t *testing.T, client service.CSPAuthClient) (*gin.Engine, *service.TokenCacheService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.CSP.ClockSkewSeconds = 60
	cfg.CSP.RetryDelaySeconds = 10

	cache, err := service.NewTokenCacheService(cfg, client)
	require.NoError(t, err)
	t.Cleanup(cache.Stop)

	handlers := ProvideHandlers(NewTokenHandler(cache))

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/csp/token", handlers.Token.ResolveToken)
	v1.GET("/csp/cache", handlers.Token.CacheSnapshot)
	v1.DELETE("/csp/cache/:key", handlers.Token.ReleaseEntry)
	return r, cache
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestResolveTokenAPITokenFlow(t *testing.T) {
	client := &stubAuthClient{tokens: &csp.Tokens{AccessToken: "acc-1", IDToken: "id-1", TokenType: "bearer", ExpiresIn: 1799}}
	r, _ := newTestRouter(t, client)

	w := doJSON(r, http.MethodPost, "/api/v1/csp/token", gin.H{"api_token": "refresh-abc"})
	require.Equal(t, http.StatusOK, w.Code)

	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data, err := json.Marshal(body.Data)
	require.NoError(t, err)

	var tokens csp.Tokens
	require.NoError(t, json.Unmarshal(data, &tokens))
	assert.Equal(t, "acc-1", tokens.AccessToken)
	assert.Equal(t, "id-1", tokens.IDToken)
	assert.Equal(t, int64(1799), tokens.ExpiresIn)
}

func TestResolveTokenClientCredentialsFlow(t *testing.T) {
	client := &stubAuthClient{tokens: &csp.Tokens{AccessToken: "acc-cc", TokenType: "bearer", ExpiresIn: 600}}
	r, _ := newTestRouter(t, client)

	w := doJSON(r, http.MethodPost, "/api/v1/csp/token", gin.H{
		"app_id":     "app-1",
		"app_secret": "s3cret",
		"org_id":     "org-1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "acc-cc")
}

func TestResolveTokenRejectsBadRequests(t *testing.T) {
	r, _ := newTestRouter(t, &stubAuthClient{tokens: &csp.Tokens{AccessToken: "x", ExpiresIn: 600}})

	cases := []struct {
		name    string
		payload gin.H
	}{
		{"empty payload", gin.H{}},
		{"both flows", gin.H{"api_token": "a", "app_id": "b", "app_secret": "c"}},
		{"app_id without secret", gin.H{"app_id": "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/api/v1/csp/token", tc.payload)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestResolveTokenUpstreamFailure(t *testing.T) {
	client := &stubAuthClient{err: &service.FetchError{StatusCode: 401, Err: context.DeadlineExceeded}}
	r, _ := newTestRouter(t, client)

	w := doJSON(r, http.MethodPost, "/api/v1/csp/token", gin.H{"api_token": "bad"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCacheSnapshotAndRelease(t *testing.T) {
	client := &stubAuthClient{tokens: &csp.Tokens{AccessToken: "acc-1", ExpiresIn: 1799}}
	r, _ := newTestRouter(t, client)

	w := doJSON(r, http.MethodPost, "/api/v1/csp/token", gin.H{"api_token": "refresh-abc"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/csp/cache", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	entries, ok := body.Data.([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)

	entry, ok := entries[0].(map[string]any)
	require.True(t, ok)
	key, _ := entry["key"].(string)
	require.NotEmpty(t, key)
	// snapshot 不得携带 token 本体
	assert.NotContains(t, w.Body.String(), "acc-1")

	w = doJSON(r, http.MethodDelete, "/api/v1/csp/cache/"+key, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodDelete, "/api/v1/csp/cache/"+key, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/api/v1/csp/cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var after response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &after))
	assert.Empty(t, after.Data)
}
