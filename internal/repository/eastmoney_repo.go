package repository

import (
	"ashare-backtest/config"
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/pkg/common"
	"ashare-backtest/pkg/httpclient"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/utils"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type eastmoneyRepository struct {
	httpClient     httpclient.HTTPClient
	cfg            *config.Config
	log            *logger.Logger
	requestLimiter *rate.Limiter
}

// NewEastmoneyRepository reads unadjusted daily klines from the Eastmoney
// quote API, the same feed akshare's stock_zh_a_hist wraps.
func NewEastmoneyRepository(cfg *config.Config, log *logger.Logger) MarketDataProvider {
	perRequest := time.Minute / time.Duration(max(cfg.Eastmoney.MaxRequestPerMinute, 1))

	return &eastmoneyRepository{
		httpClient: httpclient.New(cfg.Eastmoney.BaseURL, cfg.Eastmoney.Timeout, "",
			httpclient.WithRetry(2, time.Second)),
		cfg:            cfg,
		log:            log,
		requestLimiter: rate.NewLimiter(rate.Every(perRequest), 1),
	}
}

func (r *eastmoneyRepository) Name() string {
	return common.DATASOURCE_EASTMONEY
}

func (r *eastmoneyRepository) GetDailyBars(ctx context.Context, symbol, startDate, endDate string) ([]backtest.Bar, error) {
	if r.requestLimiter.Tokens() < 1 {
		r.log.WarnContext(ctx, "Eastmoney API request limit reached, waiting",
			logger.IntField("max_request_per_minute", r.cfg.Eastmoney.MaxRequestPerMinute),
		)
	}
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	queryParams := map[string]string{
		"secid":   EastmoneySecID(symbol),
		"fields1": "f1,f2,f3,f4,f5,f6",
		"fields2": "f51,f52,f53,f54,f55,f56,f57",
		"klt":     "101",
		"fqt":     "0",
		"beg":     utils.CompactDate(startDate),
		"end":     utils.CompactDate(endDate),
	}
	headers := map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
		"Referer":    "https://quote.eastmoney.com/",
	}

	resp, err := r.httpClient.Get(ctx, "/api/qt/stock/kline/get", queryParams, headers, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data from eastmoney: %w", err)
	}
	if !resp.IsSuccess() {
		r.log.ErrorContext(ctx, "Eastmoney API returned Non-OK status",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return nil, fmt.Errorf("eastmoney api returned status: %d", resp.StatusCode)
	}

	var body dto.EastmoneyKlineResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode eastmoney response: %w", err)
	}
	if body.Data == nil || len(body.Data.Klines) == 0 {
		return nil, nil
	}

	bars := make([]backtest.Bar, 0, len(body.Data.Klines))
	for _, line := range body.Data.Klines {
		bar, err := parseEastmoneyKline(line)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return sortAndClip(bars, startDate, endDate), nil
}

// parseEastmoneyKline reads "date,open,close,high,low,volume,...". Volume is
// in lots of 100 shares.
func parseEastmoneyKline(line string) (backtest.Bar, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 6 {
		return backtest.Bar{}, fmt.Errorf("malformed eastmoney kline %q", line)
	}
	date, err := parseBarDate(backtest.DateLayout, parts[0])
	if err != nil {
		return backtest.Bar{}, err
	}

	var values [5]float64
	for i := range values {
		v, ok := toFloat(parts[i+1])
		if !ok {
			return backtest.Bar{}, fmt.Errorf("malformed eastmoney kline %q", line)
		}
		values[i] = v
	}

	return backtest.Bar{
		Date:   date,
		Open:   values[0],
		Close:  values[1],
		High:   values[2],
		Low:    values[3],
		Volume: values[4] * 100,
	}, nil
}
