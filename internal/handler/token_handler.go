package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Wei-Shaw/csp2api/internal/pkg/csp"
	"github.com/Wei-Shaw/csp2api/internal/pkg/ctxkey"
	"github.com/Wei-Shaw/csp2api/internal/pkg/response"
	"github.com/Wei-Shaw/csp2api/internal/service"
)

// TokenHandler exposes the token cache over HTTP: resolve a token for a
// principal, inspect the cache, release an entry.
type TokenHandler struct {
	cache *service.TokenCacheService
}

func NewTokenHandler(cache *service.TokenCacheService) *TokenHandler {
	return &TokenHandler{cache: cache}
}

// ResolveTokenRequest carries either a user API token or an OAuth app
// credential pair. Exactly one flow must be present.
type ResolveTokenRequest struct {
	APIToken  string `json:"api_token"`
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
	OrgID     string `json:"org_id"`
}

func (r ResolveTokenRequest) credential() (csp.Credential, error) {
	switch {
	case r.APIToken != "" && r.AppID != "":
		return csp.Credential{}, errors.New("api_token and app_id are mutually exclusive")
	case r.APIToken != "":
		return csp.APITokenCredential(r.APIToken), nil
	case r.AppID != "" && r.AppSecret == "":
		return csp.Credential{}, errors.New("app_id requires app_secret")
	case r.AppID != "":
		return csp.ClientCredential(r.AppID, r.AppSecret, r.OrgID), nil
	default:
		return csp.Credential{}, errors.New("api_token or app_id is required")
	}
}

// ResolveToken handles POST /api/v1/csp/token.
func (h *TokenHandler) ResolveToken(c *gin.Context) {
	var payload ResolveTokenRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	cred, err := payload.credential()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := context.WithValue(c.Request.Context(), ctxkey.CacheKey, cred.CacheKey())
	c.Request = c.Request.WithContext(ctx)

	tokens, err := h.cache.GetToken(ctx, cred)
	if err != nil {
		// 无 token 是正常的降级状态：上游会继续重试，这里返回 503 交给调用方退避
		response.ServiceUnavailable(c, "token unavailable: "+err.Error())
		return
	}
	response.Success(c, tokens)
}

// CacheSnapshot handles GET /api/v1/csp/cache.
func (h *TokenHandler) CacheSnapshot(c *gin.Context) {
	response.Success(c, h.cache.Snapshot())
}

// ReleaseEntry handles DELETE /api/v1/csp/cache/:key.
func (h *TokenHandler) ReleaseEntry(c *gin.Context) {
	key := c.Param("key")
	if !h.cache.ReleaseKey(key) {
		response.NotFound(c, "no cache entry for key")
		return
	}
	response.Success(c, gin.H{"released": key})
}
