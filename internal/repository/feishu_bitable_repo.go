package repository

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/dto"
	"ashare-backtest/pkg/httpclient"
	"ashare-backtest/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

type FeishuBitableRepository interface {
	ListRecordsByStatus(ctx context.Context, status dto.BacktestTaskStatus, limit int) ([]dto.FeishuBitableRecord, error)
	UpdateRecord(ctx context.Context, recordID string, fields map[string]interface{}) error
}

type feishuBitableRepository struct {
	httpClient httpclient.HTTPClient
	cfg        *config.Config
	log        *logger.Logger
	auth       FeishuAuthRepository
}

func NewFeishuBitableRepository(cfg *config.Config, log *logger.Logger, auth FeishuAuthRepository) FeishuBitableRepository {
	return &feishuBitableRepository{
		httpClient: httpclient.New(cfg.Feishu.BaseURL, cfg.Feishu.Timeout, ""),
		cfg:        cfg,
		log:        log,
		auth:       auth,
	}
}

func (r *feishuBitableRepository) recordsPath() string {
	return fmt.Sprintf("/open-apis/bitable/v1/apps/%s/tables/%s/records",
		r.cfg.Feishu.BitableAppToken, r.cfg.Feishu.BitableTableID)
}

func (r *feishuBitableRepository) ListRecordsByStatus(ctx context.Context, status dto.BacktestTaskStatus, limit int) ([]dto.FeishuBitableRecord, error) {
	if r.cfg.Feishu.BitableAppToken == "" || r.cfg.Feishu.BitableTableID == "" {
		return nil, fmt.Errorf("feishu bitable app token or table id is not configured")
	}
	token, err := r.auth.GetTenantToken(ctx)
	if err != nil {
		return nil, err
	}

	queryParams := map[string]string{
		"page_size": strconv.Itoa(limit),
		"filter":    fmt.Sprintf(`CurrentValue.[status] = "%s"`, status),
	}
	resp, err := r.httpClient.Get(ctx, r.recordsPath(), queryParams, bearer(token), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list bitable records: %w", err)
	}
	if !resp.IsSuccess() {
		r.log.ErrorContext(ctx, "Feishu bitable list returned Non-OK status",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return nil, fmt.Errorf("feishu bitable list returned status: %d", resp.StatusCode)
	}

	var body dto.FeishuBitableListResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode bitable records: %w", err)
	}
	if body.Code != 0 {
		return nil, fmt.Errorf("failed to list bitable records: code=%d msg=%s", body.Code, body.Msg)
	}
	return body.Data.Items, nil
}

func (r *feishuBitableRepository) UpdateRecord(ctx context.Context, recordID string, fields map[string]interface{}) error {
	token, err := r.auth.GetTenantToken(ctx)
	if err != nil {
		return err
	}

	resp, err := r.httpClient.Put(ctx, r.recordsPath()+"/"+recordID,
		dto.FeishuBitableUpdateRequest{Fields: fields}, bearer(token), nil)
	if err != nil {
		return fmt.Errorf("failed to update bitable record: %w", err)
	}
	if !resp.IsSuccess() {
		r.log.ErrorContext(ctx, "Feishu bitable update returned Non-OK status",
			logger.StringField("record_id", recordID),
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return fmt.Errorf("feishu bitable update returned status: %d", resp.StatusCode)
	}

	var body dto.FeishuBaseResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return fmt.Errorf("failed to decode bitable update response: %w", err)
	}
	if body.Code != 0 {
		return fmt.Errorf("failed to update bitable record %s: code=%d msg=%s", recordID, body.Code, body.Msg)
	}
	return nil
}
