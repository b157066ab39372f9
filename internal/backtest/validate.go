package backtest

import (
	"fmt"
	"regexp"
	"time"
)

var symbolPattern = regexp.MustCompile(`^\d{6}$`)

func IsValidSymbol(symbol string) bool {
	return symbolPattern.MatchString(symbol)
}

// ParseDateRange parses a YYYY-MM-DD range and requires start < end.
func ParseDateRange(start, end string) (time.Time, time.Time, error) {
	verr := &ValidationError{}
	s, errS := time.Parse(DateLayout, start)
	if errS != nil {
		verr.Add("start_date", "must be YYYY-MM-DD")
	}
	e, errE := time.Parse(DateLayout, end)
	if errE != nil {
		verr.Add("end_date", "must be YYYY-MM-DD")
	}
	if errS == nil && errE == nil && !s.Before(e) {
		verr.Add("start_date", "must be before end_date")
	}
	if err := verr.OrNil(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return s, e, nil
}

// ValidateRun checks the run description together with its parameters and
// returns a single ValidationError covering all violations.
func ValidateRun(inputs RunInputs, params Parameters) error {
	verr := &ValidationError{}
	if !IsValidSymbol(inputs.Symbol) {
		verr.Add("symbol", "must be a 6 digit code")
	}
	if _, _, err := ParseDateRange(inputs.StartDate, inputs.EndDate); err != nil {
		if dateErr, ok := err.(*ValidationError); ok {
			verr.Merge(dateErr)
		}
	}
	params.collect(verr)
	return verr.OrNil()
}

// ValidateSeries rejects malformed bars before any simulation happens.
func ValidateSeries(bars []Bar) error {
	verr := &ValidationError{}
	for i, b := range bars {
		field := func(name string) string {
			return fmt.Sprintf("bars[%d].%s", i, name)
		}
		if b.Date.IsZero() {
			verr.Add(field("date"), "is missing")
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			verr.Add(field("date"), "must be after the previous bar")
		}
		if !isFinite(b.Open) || !isFinite(b.High) || !isFinite(b.Low) || !isFinite(b.Close) || !isFinite(b.Volume) {
			verr.Add(field("price"), "open, high, low, close and volume must be finite numbers")
			continue
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			verr.Add(field("price"), "must be > 0")
			continue
		}
		if b.Low > b.High {
			verr.Add(field("low"), "must be <= high")
			continue
		}
		if b.Open < b.Low || b.Open > b.High {
			verr.Add(field("open"), "must be within [low, high]")
		}
		if b.Close < b.Low || b.Close > b.High {
			verr.Add(field("close"), "must be within [low, high]")
		}
		if b.Volume < 0 {
			verr.Add(field("volume"), "must be >= 0")
		}
	}
	return verr.OrNil()
}
