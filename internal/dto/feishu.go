package dto

type FeishuTenantTokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type FeishuTenantTokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

type FeishuBaseResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type FeishuBitableRecord struct {
	RecordID string                 `json:"record_id"`
	Fields   map[string]interface{} `json:"fields"`
}

type FeishuBitableListResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Items     []FeishuBitableRecord `json:"items"`
		HasMore   bool                  `json:"has_more"`
		PageToken string                `json:"page_token"`
		Total     int                   `json:"total"`
	} `json:"data"`
}

type FeishuBitableUpdateRequest struct {
	Fields map[string]interface{} `json:"fields"`
}

// FeishuTextMessage is the group webhook payload.
type FeishuTextMessage struct {
	MsgType string            `json:"msg_type"`
	Content FeishuTextContent `json:"content"`
}

type FeishuTextContent struct {
	Text string `json:"text"`
}

func NewFeishuTextMessage(text string) FeishuTextMessage {
	return FeishuTextMessage{MsgType: "text", Content: FeishuTextContent{Text: text}}
}

// FeishuWebhookResponse covers both the legacy StatusCode and the newer code
// fields returned by group bots.
type FeishuWebhookResponse struct {
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
	StatusCode int    `json:"StatusCode"`
}

// FeishuSendMessageRequest sends an IM message. Content is JSON encoded as a
// string per the open API contract.
type FeishuSendMessageRequest struct {
	ReceiveID string `json:"receive_id"`
	MsgType   string `json:"msg_type"`
	Content   string `json:"content"`
}

type FeishuSendMessageResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		MessageID string `json:"message_id"`
	} `json:"data"`
}

// CardCallbackResponse is the body returned to Feishu. Challenge is only set
// when answering the url_verification handshake.
type CardCallbackResponse struct {
	OK        bool   `json:"ok"`
	Msg       string `json:"msg"`
	Challenge string `json:"challenge,omitempty"`
}

// BacktestTaskStatus values are the option labels of the Bitable status column.
type BacktestTaskStatus string

const (
	TaskStatusPending   BacktestTaskStatus = "待回测"
	TaskStatusRunning   BacktestTaskStatus = "运行中"
	TaskStatusCompleted BacktestTaskStatus = "已完成"
	TaskStatusFailed    BacktestTaskStatus = "失败"
)

// BacktestTaskFields mirrors the Bitable columns after unwrapping text cells.
type BacktestTaskFields struct {
	Symbol      string      `mapstructure:"symbol"`
	StartDate   interface{} `mapstructure:"start_date"`
	EndDate     interface{} `mapstructure:"end_date"`
	TakeProfit  *float64    `mapstructure:"take_profit"`
	StopLoss    *float64    `mapstructure:"stop_loss"`
	MaxHoldDays *int        `mapstructure:"max_hold_days"`
	Cash        *float64    `mapstructure:"cash"`
	Datasource  string      `mapstructure:"datasource"`
	Status      string      `mapstructure:"status"`
}

type TaskQueueItemResult struct {
	RecordID string             `json:"record_id"`
	Symbol   string             `json:"symbol,omitempty"`
	RunID    string             `json:"run_id,omitempty"`
	Status   BacktestTaskStatus `json:"status"`
	Message  string             `json:"message"`
}

type TaskQueueResult struct {
	Total     int                   `json:"total"`
	Completed int                   `json:"completed"`
	Failed    int                   `json:"failed"`
	Skipped   int                   `json:"skipped"`
	Items     []TaskQueueItemResult `json:"items"`
}
