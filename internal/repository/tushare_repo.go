package repository

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/pkg/common"
	"ashare-backtest/pkg/httpclient"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/ratelimit"
	"ashare-backtest/pkg/utils"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const tushareDailyFields = "trade_date,open,high,low,close,vol"

type tushareRepository struct {
	httpClient httpclient.HTTPClient
	cfg        *config.Config
	log        *logger.Logger
	limiter    *ratelimit.TokenLimiter
}

func NewTushareRepository(cfg *config.Config, log *logger.Logger) MarketDataProvider {
	return &tushareRepository{
		httpClient: httpclient.New(cfg.Tushare.BaseURL, cfg.Tushare.Timeout, "",
			httpclient.WithRetry(2, time.Second)),
		cfg:     cfg,
		log:     log,
		limiter: ratelimit.NewTokenLimiter(cfg.Tushare.MaxRequestPerMinute),
	}
}

func (r *tushareRepository) Name() string {
	return common.DATASOURCE_TUSHARE
}

func (r *tushareRepository) Enabled() bool {
	return r.cfg.Tushare.Token != ""
}

func (r *tushareRepository) GetDailyBars(ctx context.Context, symbol, startDate, endDate string) ([]backtest.Bar, error) {
	if !r.Enabled() {
		return nil, backtest.NewValidationError("datasource", "tushare requires TUSHARE_TOKEN")
	}

	if r.limiter.GetRemaining() == 0 {
		r.log.WarnContext(ctx, "Tushare request quota exhausted, waiting for refill",
			logger.IntField("max_request_per_minute", r.cfg.Tushare.MaxRequestPerMinute),
		)
	}
	if err := r.limiter.Wait(ctx, 1); err != nil {
		return nil, err
	}

	req := dto.TushareRequest{
		APIName: "daily",
		Token:   r.cfg.Tushare.Token,
		Params: map[string]string{
			"ts_code":    TushareCode(symbol),
			"start_date": utils.CompactDate(startDate),
			"end_date":   utils.CompactDate(endDate),
		},
		Fields: tushareDailyFields,
	}

	resp, err := r.httpClient.Post(ctx, "/", req, map[string]string{"Content-Type": "application/json"}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data from tushare: %w", err)
	}
	if !resp.IsSuccess() {
		r.log.ErrorContext(ctx, "Tushare API returned Non-OK status",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return nil, fmt.Errorf("tushare api returned status: %d", resp.StatusCode)
	}

	var body dto.TushareResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode tushare response: %w", err)
	}
	if body.Code != 0 {
		return nil, fmt.Errorf("tushare api error %d: %s", body.Code, body.Msg)
	}
	if body.Data == nil || len(body.Data.Items) == 0 {
		return nil, nil
	}

	bars, err := parseTushareItems(body.Data.Fields, body.Data.Items)
	if err != nil {
		return nil, err
	}
	return sortAndClip(bars, startDate, endDate), nil
}

// parseTushareItems maps the column oriented payload into bars. Volume is
// reported in lots of 100 shares.
func parseTushareItems(fields []string, items [][]interface{}) ([]backtest.Bar, error) {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[f] = i
	}
	for _, required := range []string{"trade_date", "open", "high", "low", "close", "vol"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("tushare response missing column %s", required)
		}
	}

	bars := make([]backtest.Bar, 0, len(items))
	for _, item := range items {
		if len(item) < len(fields) {
			return nil, fmt.Errorf("tushare row has %d columns, want %d", len(item), len(fields))
		}
		dateStr, _ := item[index["trade_date"]].(string)
		date, err := parseBarDate("20060102", dateStr)
		if err != nil {
			return nil, err
		}

		var values [5]float64
		for i, col := range []string{"open", "high", "low", "close", "vol"} {
			v, ok := toFloat(item[index[col]])
			if !ok {
				return nil, fmt.Errorf("tushare row %s has invalid %s", dateStr, col)
			}
			values[i] = v
		}

		bars = append(bars, backtest.Bar{
			Date:   date,
			Open:   values[0],
			High:   values[1],
			Low:    values[2],
			Close:  values[3],
			Volume: values[4] * 100,
		})
	}
	return bars, nil
}
