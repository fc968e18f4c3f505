package repository

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Wei-Shaw/csp2api/internal/config"
	"github.com/Wei-Shaw/csp2api/internal/pkg/csp"
	"github.com/Wei-Shaw/csp2api/internal/service"
	"github.com/Wei-Shaw/csp2api/internal/util/logredact"

	"github.com/imroc/req/v3"
)

// NewCSPAuthClient builds the production CSP auth client from config.
func NewCSPAuthClient(cfg *config.Config) service.CSPAuthClient {
	return &cspAuthService{
		apiTokenURL: cfg.CSP.APITokenURL,
		oauthURL:    cfg.CSP.OAuthURL,
		client:      newReqClient(cfg.CSP.RequestTimeout(), cfg.CSP.ProxyURL),
	}
}

type cspAuthService struct {
	apiTokenURL string
	oauthURL    string
	client      *req.Client
}

// FetchByAPIToken exchanges a user API token for CSP tokens.
// https://console-stg.cloud.vmware.com/csp/gateway/authn/api/swagger-ui.html#/Authentication/getAccessTokenByApiRefreshTokenUsingPOST
func (s *cspAuthService) FetchByAPIToken(ctx context.Context, apiToken string) (*csp.Tokens, error) {
	log.Printf("[CSPAuth] fetching tokens by API token %s", logredact.Token(apiToken))

	var tokens csp.Tokens
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"api_token": apiToken}).
		SetSuccessResult(&tokens).
		Post(s.apiTokenURL)

	return finishFetch(&tokens, resp, err)
}

// FetchByClientCredentials runs the client_credentials flow for an OAuth
// server-to-server app.
// https://console-stg.cloud.vmware.com/csp/gateway/authn/api/swagger-ui.html#/Authentication/getTokenForAuthGrantTypeInternalUsingPOST
func (s *cspAuthService) FetchByClientCredentials(ctx context.Context, appID, appSecret, orgID string) (*csp.Tokens, error) {
	log.Printf("[CSPAuth] fetching tokens by OAuth app credentials app_id=%s", logredact.Token(appID))

	form := map[string]string{"grant_type": "client_credentials"}
	if orgID != "" {
		form["orgId"] = orgID
	}

	var tokens csp.Tokens
	resp, err := s.client.R().
		SetContext(ctx).
		SetBasicAuth(appID, appSecret).
		SetFormData(form).
		SetSuccessResult(&tokens).
		Post(s.oauthURL)

	return finishFetch(&tokens, resp, err)
}

// finishFetch collapses transport faults, non-2xx statuses and decode
// failures into one *service.FetchError.
func finishFetch(tokens *csp.Tokens, resp *req.Response, err error) (*csp.Tokens, error) {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	if err != nil {
		// 传输错误或成功响应体解码失败都会走到这里
		return nil, &service.FetchError{StatusCode: status, Err: fmt.Errorf("request failed: %w", err)}
	}
	if !resp.IsSuccessState() {
		return nil, &service.FetchError{
			StatusCode: status,
			Err:        fmt.Errorf("unexpected status, body: %s", logredact.JSON(resp.Bytes())),
		}
	}
	return tokens, nil
}

func newReqClient(timeout time.Duration, proxyURL string) *req.Client {
	client := req.C().SetTimeout(timeout)
	if strings.TrimSpace(proxyURL) != "" {
		client.SetProxyURL(strings.TrimSpace(proxyURL))
	}
	return client
}
