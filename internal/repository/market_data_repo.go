package repository

import (
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/pkg/common"
	"ashare-backtest/pkg/logger"
	"context"
	"errors"
	"fmt"
	"strings"
)

type FetchOutcome string

const (
	FetchSuccess FetchOutcome = "success"
	FetchEmpty   FetchOutcome = "empty"
	FetchFailed  FetchOutcome = "failed"
)

// FetchAttempt records how one provider answered a Fetch.
type FetchAttempt struct {
	Provider string
	Outcome  FetchOutcome
	Bars     int
	Err      error
}

func (a FetchAttempt) String() string {
	return a.Provider + ":" + string(a.Outcome)
}

func attemptTrail(attempts []FetchAttempt) []string {
	trail := make([]string, 0, len(attempts))
	for _, a := range attempts {
		trail = append(trail, a.String())
	}
	return trail
}

type MarketDataRepository interface {
	Fetch(ctx context.Context, param dto.FetchParam) (backtest.PriceSeries, error)
}

type marketDataRepository struct {
	log       *logger.Logger
	providers []MarketDataProvider
}

// NewMarketDataRepository tries providers in the given order when the
// datasource is auto.
func NewMarketDataRepository(log *logger.Logger, providers ...MarketDataProvider) MarketDataRepository {
	return &marketDataRepository{log: log, providers: providers}
}

func (r *marketDataRepository) Fetch(ctx context.Context, param dto.FetchParam) (backtest.PriceSeries, error) {
	datasource := strings.ToLower(strings.TrimSpace(param.Datasource))
	if datasource == "" {
		datasource = common.DATASOURCE_AUTO
	}

	chain, err := r.chain(datasource)
	if err != nil {
		return backtest.PriceSeries{}, err
	}

	attempts := make([]FetchAttempt, 0, len(chain))
	var lastErr error
	for _, p := range chain {
		if ctx.Err() != nil {
			return backtest.PriceSeries{}, ctx.Err()
		}

		attempt := r.try(ctx, p, param)
		attempts = append(attempts, attempt.FetchAttempt)

		switch attempt.Outcome {
		case FetchSuccess:
			r.log.InfoContext(ctx, "Market data loaded",
				logger.StringField("symbol", param.Symbol),
				logger.StringField("datasource", datasource),
				logger.StringField("provider", p.Name()),
				logger.IntField("bars", attempt.Bars),
				logger.IntField("attempts", len(attempts)),
			)
			return attempt.series, nil
		case FetchFailed:
			var verr *backtest.ValidationError
			if errors.As(attempt.Err, &verr) {
				return backtest.PriceSeries{}, attempt.Err
			}
			if errors.Is(attempt.Err, context.Canceled) || errors.Is(attempt.Err, context.DeadlineExceeded) {
				return backtest.PriceSeries{}, attempt.Err
			}
			lastErr = attempt.Err
			r.log.WarnContext(ctx, "Market data provider failed",
				logger.StringField("symbol", param.Symbol),
				logger.StringField("provider", p.Name()),
				logger.ErrorField(attempt.Err),
			)
		case FetchEmpty:
			r.log.InfoContext(ctx, "Market data provider returned no rows",
				logger.StringField("symbol", param.Symbol),
				logger.StringField("provider", p.Name()),
			)
		}
	}

	if lastErr != nil {
		return backtest.PriceSeries{}, &backtest.DataUnavailableError{
			Symbol:   param.Symbol,
			Reason:   fmt.Sprintf("all providers failed (datasource=%s)", datasource),
			Err:      lastErr,
			Attempts: attemptTrail(attempts),
		}
	}
	return backtest.PriceSeries{}, &backtest.DataUnavailableError{
		Symbol:   param.Symbol,
		Reason:   fmt.Sprintf("empty data (datasource=%s)", datasource),
		Attempts: attemptTrail(attempts),
	}
}

type attemptResult struct {
	FetchAttempt
	series backtest.PriceSeries
}

func (r *marketDataRepository) try(ctx context.Context, p MarketDataProvider, param dto.FetchParam) attemptResult {
	res := attemptResult{FetchAttempt: FetchAttempt{Provider: p.Name()}}

	bars, err := p.GetDailyBars(ctx, param.Symbol, param.StartDate, param.EndDate)
	if err != nil {
		res.Outcome = FetchFailed
		res.Err = fmt.Errorf("%s: %w", p.Name(), err)
		return res
	}
	if len(bars) == 0 {
		res.Outcome = FetchEmpty
		return res
	}
	if err := backtest.ValidateSeries(bars); err != nil {
		// A malformed upstream series is a provider failure, not a caller error.
		res.Outcome = FetchFailed
		res.Err = fmt.Errorf("%s returned malformed bars: %s", p.Name(), err.Error())
		return res
	}

	res.Outcome = FetchSuccess
	res.Bars = len(bars)
	res.series = backtest.PriceSeries{Symbol: param.Symbol, SourceName: p.Name(), Bars: bars}
	return res
}

// chain resolves the ordered providers for a datasource name.
func (r *marketDataRepository) chain(datasource string) ([]MarketDataProvider, error) {
	if datasource == common.DATASOURCE_AKSHARE {
		datasource = common.DATASOURCE_EASTMONEY
	}

	if datasource == common.DATASOURCE_AUTO {
		chain := make([]MarketDataProvider, 0, len(r.providers))
		for _, p := range r.providers {
			if t, ok := p.(providerToggle); ok && !t.Enabled() {
				continue
			}
			chain = append(chain, p)
		}
		if len(chain) == 0 {
			return nil, &backtest.DataUnavailableError{Reason: "no market data provider configured"}
		}
		return chain, nil
	}

	for _, p := range r.providers {
		if p.Name() != datasource {
			continue
		}
		if t, ok := p.(providerToggle); ok && !t.Enabled() {
			return nil, backtest.NewValidationError("datasource", fmt.Sprintf("%s is not configured (missing token)", datasource))
		}
		return []MarketDataProvider{p}, nil
	}
	return nil, backtest.NewValidationError("datasource",
		"must be one of "+strings.Join(common.GetDatasourceList(), ", "))
}
