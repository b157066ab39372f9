package repository

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/dto"
	"ashare-backtest/pkg/httpclient"
	"ashare-backtest/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
)

type FeishuMessageRepository interface {
	// SendWebhookText posts to the group bot webhook. It is a no-op when no
	// webhook is configured.
	SendWebhookText(ctx context.Context, text string) error
	SendCard(ctx context.Context, chatID string, card interface{}) (string, error)
}

type feishuMessageRepository struct {
	httpClient httpclient.HTTPClient
	cfg        *config.Config
	log        *logger.Logger
	auth       FeishuAuthRepository
}

func NewFeishuMessageRepository(cfg *config.Config, log *logger.Logger, auth FeishuAuthRepository) FeishuMessageRepository {
	return &feishuMessageRepository{
		httpClient: httpclient.New(cfg.Feishu.BaseURL, cfg.Feishu.Timeout, ""),
		cfg:        cfg,
		log:        log,
		auth:       auth,
	}
}

func (r *feishuMessageRepository) SendWebhookText(ctx context.Context, text string) error {
	if r.cfg.Feishu.WebhookURL == "" {
		r.log.DebugContext(ctx, "Feishu webhook not configured, skipping message")
		return nil
	}

	resp, err := r.httpClient.Post(ctx, r.cfg.Feishu.WebhookURL, dto.NewFeishuTextMessage(text),
		map[string]string{"Content-Type": "application/json; charset=utf-8"}, nil)
	if err != nil {
		return fmt.Errorf("failed to send feishu webhook: %w", err)
	}
	if !resp.IsSuccess() {
		r.log.ErrorContext(ctx, "Feishu webhook returned Non-OK status",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return fmt.Errorf("feishu webhook returned status: %d", resp.StatusCode)
	}

	var body dto.FeishuWebhookResponse
	if err := json.Unmarshal(resp.Body, &body); err == nil && body.Code != 0 {
		return fmt.Errorf("feishu webhook rejected message: code=%d msg=%s", body.Code, body.Msg)
	}
	return nil
}

func (r *feishuMessageRepository) SendCard(ctx context.Context, chatID string, card interface{}) (string, error) {
	if chatID == "" {
		chatID = r.cfg.Feishu.ChatID
	}
	if chatID == "" {
		return "", fmt.Errorf("feishu chat id is not configured")
	}
	token, err := r.auth.GetTenantToken(ctx)
	if err != nil {
		return "", err
	}

	content, err := json.Marshal(card)
	if err != nil {
		return "", fmt.Errorf("failed to encode card: %w", err)
	}
	req := dto.FeishuSendMessageRequest{ReceiveID: chatID, MsgType: "interactive", Content: string(content)}

	resp, err := r.httpClient.PostWithQuery(ctx, "/open-apis/im/v1/messages",
		map[string]string{"receive_id_type": "chat_id"}, req, bearer(token), nil)
	if err != nil {
		return "", fmt.Errorf("failed to send feishu card: %w", err)
	}
	if !resp.IsSuccess() {
		r.log.ErrorContext(ctx, "Feishu send message returned Non-OK status",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return "", fmt.Errorf("feishu send message returned status: %d", resp.StatusCode)
	}

	var body dto.FeishuSendMessageResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("failed to decode send message response: %w", err)
	}
	if body.Code != 0 {
		return "", fmt.Errorf("failed to send feishu card: code=%d msg=%s", body.Code, body.Msg)
	}
	return body.Data.MessageID, nil
}
