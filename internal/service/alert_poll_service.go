package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"
	"github.com/robfig/cron/v3"
	"github.com/tidwall/gjson"

	"github.com/Wei-Shaw/csp2api/internal/config"
	"github.com/Wei-Shaw/csp2api/internal/pkg/csp"
)

const alertPollPath = "/api/v2/alert?offset=0&limit=5"

// AlertPollService periodically calls the protected alerts API with cached
// CSP bearer tokens, one call per configured principal. It is the in-process
// consumer of the token cache; a dead CSP endpoint degrades it to log noise,
// never to a crash.
type AlertPollService struct {
	cache  *TokenCacheService
	cfg    *config.Config
	client *req.Client

	instanceID string

	cron *cron.Cron

	startOnce sync.Once
	stopOnce  sync.Once
}

func NewAlertPollService(cfg *config.Config, cache *TokenCacheService) *AlertPollService {
	return &AlertPollService{
		cache:      cache,
		cfg:        cfg,
		client:     req.C().SetTimeout(cfg.CSP.RequestTimeout()),
		instanceID: uuid.NewString(),
	}
}

func (s *AlertPollService) Start() {
	if s == nil {
		return
	}
	if s.cfg == nil || !s.cfg.Alerts.Enabled {
		log.Printf("[AlertPoll] not started (disabled)")
		return
	}

	s.startOnce.Do(func() {
		interval := s.cfg.Alerts.IntervalMinutes
		if interval <= 0 {
			interval = 10
		}

		c := cron.New(cron.WithLocation(s.cfg.Location()))
		_, err := c.AddFunc(fmt.Sprintf("@every %dm", interval), func() { s.pollAll() })
		if err != nil {
			log.Printf("[AlertPoll] not started (invalid interval=%dm): %v", interval, err)
			return
		}
		s.cron = c
		s.cron.Start()
		log.Printf("[AlertPoll] started (instance=%s interval=%dm)", s.instanceID, interval)

		// 启动后立刻跑一轮，顺带预热 token 缓存
		go s.pollAll()
	})
}

func (s *AlertPollService) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		if s.cron != nil {
			ctx := s.cron.Stop()
			select {
			case <-ctx.Done():
			case <-time.After(3 * time.Second):
				log.Printf("[AlertPoll] stop timed out waiting for running poll")
			}
		}
		log.Printf("[AlertPoll] stopped")
	})
}

// credentials assembles the configured principals. Either flow may be absent.
func (s *AlertPollService) credentials() []csp.Credential {
	var creds []csp.Credential
	if s.cfg.Alerts.APIToken != "" {
		creds = append(creds, csp.APITokenCredential(s.cfg.Alerts.APIToken))
	}
	if s.cfg.Alerts.OAuthAppID != "" {
		creds = append(creds, csp.ClientCredential(s.cfg.Alerts.OAuthAppID, s.cfg.Alerts.OAuthAppSecret, s.cfg.Alerts.OrgID))
	}
	return creds
}

func (s *AlertPollService) pollAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*s.cfg.CSP.RequestTimeout())
	defer cancel()

	for _, cred := range s.credentials() {
		tokens, err := s.cache.GetToken(ctx, cred)
		if err != nil {
			// token 暂不可用是正常状态，缓存的重试循环会补上
			log.Printf("[AlertPoll] no token for key=%s, skipping: %v", cred.LogKey(), err)
			continue
		}
		s.relayAlerts(ctx, cred.LogKey(), tokens.AccessToken)
	}
}

func (s *AlertPollService) relayAlerts(ctx context.Context, logKey, accessToken string) {
	r := s.client.R().
		SetContext(ctx).
		SetBearerAuthToken(accessToken)
	if s.cfg.Alerts.TenantID != "" {
		r.SetHeader("X-WAVEFRONT-TENANT", s.cfg.Alerts.TenantID)
	}

	resp, err := r.Get(s.cfg.Alerts.BaseURL + alertPollPath)
	if err != nil {
		log.Printf("[AlertPoll] key=%s request failed: %v", logKey, err)
		return
	}
	if !resp.IsSuccessState() {
		log.Printf("[AlertPoll] key=%s unexpected status %d", logKey, resp.StatusCode)
		return
	}

	log.Printf("[AlertPoll] key=%s fetched %d alerts", logKey, s.countAlerts(resp.Bytes()))
}

func (s *AlertPollService) countAlerts(body []byte) int64 {
	path := s.cfg.Alerts.CountPath
	if path == "" {
		path = "#" // 顶层数组
	}
	return gjson.GetBytes(body, path).Int()
}
