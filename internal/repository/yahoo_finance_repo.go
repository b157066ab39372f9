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
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

type yahooFinanceRepository struct {
	httpClient     httpclient.HTTPClient
	cfg            *config.Config
	log            *logger.Logger
	requestLimiter *rate.Limiter
}

func NewYahooFinanceRepository(cfg *config.Config, log *logger.Logger) MarketDataProvider {
	perRequest := time.Minute / time.Duration(max(cfg.YahooFinance.MaxRequestPerMinute, 1))

	return &yahooFinanceRepository{
		httpClient:     httpclient.New(cfg.YahooFinance.BaseURL, cfg.YahooFinance.Timeout, ""),
		cfg:            cfg,
		log:            log,
		requestLimiter: rate.NewLimiter(rate.Every(perRequest), 1),
	}
}

func (r *yahooFinanceRepository) Name() string {
	return common.DATASOURCE_YAHOO
}

func (r *yahooFinanceRepository) GetDailyBars(ctx context.Context, symbol, startDate, endDate string) ([]backtest.Bar, error) {
	if r.requestLimiter.Tokens() < 1 {
		r.log.WarnContext(ctx, "Yahoo Finance API request limit reached, waiting",
			logger.IntField("max_request_per_minute", r.cfg.YahooFinance.MaxRequestPerMinute),
		)
	}
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	loc := utils.GetCSTTimeLocation()
	start, err := time.ParseInLocation(backtest.DateLayout, startDate, loc)
	if err != nil {
		return nil, backtest.NewValidationError("start_date", "must be YYYY-MM-DD")
	}
	end, err := time.ParseInLocation(backtest.DateLayout, endDate, loc)
	if err != nil {
		return nil, backtest.NewValidationError("end_date", "must be YYYY-MM-DD")
	}

	queryParams := map[string]string{
		"period1":        strconv.FormatInt(start.Unix(), 10),
		"period2":        strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10),
		"interval":       "1d",
		"includePrePost": "false",
		"events":         "div,split",
	}
	headers := map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "https://finance.yahoo.com/",
	}

	resp, err := r.httpClient.Get(ctx, "/"+YahooTicker(symbol), queryParams, headers, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data from yahoo finance: %w", err)
	}
	if resp.StatusCode == 404 {
		return nil, nil
	}
	if !resp.IsSuccess() {
		r.log.ErrorContext(ctx, "Yahoo Finance API returned Non-OK status",
			logger.IntField("status_code", resp.StatusCode),
			logger.StringField("body", string(resp.Body)))
		return nil, fmt.Errorf("yahoo finance api returned status: %d", resp.StatusCode)
	}

	var yahooResp dto.YahooFinanceResponse
	if err := json.Unmarshal(resp.Body, &yahooResp); err != nil {
		return nil, fmt.Errorf("failed to decode yahoo finance response: %w", err)
	}
	if yahooResp.HasError() {
		return nil, fmt.Errorf("yahoo finance api error: %s", string(yahooResp.Chart.Error))
	}
	if len(yahooResp.Chart.Result) == 0 || len(yahooResp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := yahooResp.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]backtest.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Skip rows with any missing value, Yahoo emits nulls for halted days.
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			i >= len(quote.Close) || i >= len(quote.Volume) {
			continue
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		volume := 0.0
		if quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}

		day := time.Unix(ts, 0).In(loc).Format(backtest.DateLayout)
		date, _ := time.Parse(backtest.DateLayout, day)
		bars = append(bars, backtest.Bar{
			Date:   date,
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  *quote.Close[i],
			Volume: volume,
		})
	}
	return sortAndClip(bars, startDate, endDate), nil
}
