package repository

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/dto"
	"ashare-backtest/pkg/cache"
	"ashare-backtest/pkg/common"
	"ashare-backtest/pkg/httpclient"
	"ashare-backtest/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	feishuDefaultTokenTTL = 3600
	feishuTokenSafety     = 60 * time.Second
)

var ErrFeishuNotConfigured = errors.New("feishu app credentials are not configured")

// TenantTokenCache keeps a tenant token until less than a minute of its
// lifetime remains.
type TenantTokenCache struct {
	cache cache.Cache
	key   string
}

func NewTenantTokenCache(c cache.Cache, appID string) *TenantTokenCache {
	return &TenantTokenCache{cache: c, key: fmt.Sprintf(common.KEY_FEISHU_TENANT_TOKEN, appID)}
}

func (t *TenantTokenCache) Get() (string, bool) {
	return cache.Get[string](t.cache, t.key)
}

func (t *TenantTokenCache) Set(token string, expireSeconds int) {
	if expireSeconds <= 0 {
		expireSeconds = feishuDefaultTokenTTL
	}
	ttl := time.Duration(expireSeconds)*time.Second - feishuTokenSafety
	if ttl <= 0 {
		return
	}
	t.cache.Set(t.key, token, ttl)
}

func (t *TenantTokenCache) Invalidate() {
	t.cache.Delete(t.key)
}

type FeishuAuthRepository interface {
	GetTenantToken(ctx context.Context) (string, error)
	InvalidateToken()
}

type feishuAuthRepository struct {
	httpClient httpclient.HTTPClient
	cfg        *config.Config
	log        *logger.Logger
	tokens     *TenantTokenCache
	mu         sync.Mutex
}

func NewFeishuAuthRepository(cfg *config.Config, log *logger.Logger, inmemoryCache cache.Cache) FeishuAuthRepository {
	return &feishuAuthRepository{
		httpClient: httpclient.New(cfg.Feishu.BaseURL, cfg.Feishu.Timeout, ""),
		cfg:        cfg,
		log:        log,
		tokens:     NewTenantTokenCache(inmemoryCache, cfg.Feishu.AppID),
	}
}

func (r *feishuAuthRepository) GetTenantToken(ctx context.Context) (string, error) {
	if r.cfg.Feishu.AppID == "" || r.cfg.Feishu.AppSecret == "" {
		return "", ErrFeishuNotConfigured
	}
	if token, ok := r.tokens.Get(); ok {
		return token, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.tokens.Get(); ok {
		return token, nil
	}

	req := dto.FeishuTenantTokenRequest{AppID: r.cfg.Feishu.AppID, AppSecret: r.cfg.Feishu.AppSecret}
	resp, err := r.httpClient.Post(ctx, "/open-apis/auth/v3/tenant_access_token/internal", req,
		map[string]string{"Content-Type": "application/json; charset=utf-8"}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to request tenant access token: %w", err)
	}
	if !resp.IsSuccess() {
		r.log.ErrorContext(ctx, "Feishu auth returned Non-OK status",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return "", fmt.Errorf("feishu auth returned status: %d", resp.StatusCode)
	}

	var body dto.FeishuTenantTokenResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("failed to decode tenant token response: %w", err)
	}
	if body.Code != 0 || body.TenantAccessToken == "" {
		return "", fmt.Errorf("failed to get tenant_access_token: code=%d msg=%s", body.Code, body.Msg)
	}

	r.tokens.Set(body.TenantAccessToken, body.Expire)
	r.log.DebugContext(ctx, "Feishu tenant token refreshed", logger.IntField("expire", body.Expire))
	return body.TenantAccessToken, nil
}

func (r *feishuAuthRepository) InvalidateToken() {
	r.tokens.Invalidate()
}

func bearer(token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + token,
		"Content-Type":  "application/json; charset=utf-8",
	}
}
