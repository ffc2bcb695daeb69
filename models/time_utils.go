package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// DateLayout is the on-disk and config date format
const DateLayout = "2006-01-02"

// DefaultStartDate is used when no start date is configured
const DefaultStartDate = "2000-01-01"

// TradingDaysPerYear is used to annualize daily statistics
const TradingDaysPerYear = 252

// LastTradingDay steps back over weekends. Exchange holidays are not modelled.
func LastTradingDay(d time.Time) time.Time {
	d = TruncateDay(d)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NextTradingDay returns the first weekday after d
func NextTradingDay(d time.Time) time.Time {
	d = TruncateDay(d).AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// TruncateDay drops the clock part and normalizes to UTC midnight
func TruncateDay(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or a numeric unix timestamp
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}

	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(ts, 0).UTC(), nil
	}

	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing date %q", s)
	}
	return d, nil
}

// ToUnix converts a day to the unix timestamp of its UTC midnight
func ToUnix(d time.Time) int64 {
	return TruncateDay(d).Unix()
}
