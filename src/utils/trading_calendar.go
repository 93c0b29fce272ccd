package utils

import (
	"strings"
	"time"

	"tradeapi-connector/src/convert"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers whether the exchange of a symbol is trading.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location

	// Fallback session, wall clock in Timezone
	openMinute  int
	closeMinute int
}

// Moscow Exchange main and derivatives markets, morning to evening session
const (
	moexOpenMinute  = 7 * 60
	moexCloseMinute = 23*60 + 50
)

// -----------------------------------------------------------------------------

// micForSymbol extracts the exchange code from "ticker@MIC". Bare tickers are
// assumed to trade on the Moscow Exchange.
func micForSymbol(symbol string) string {
	if _, mic, ok := convert.ParseSymbol(symbol); ok {
		return strings.ToUpper(mic)
	}
	return "MISX"
}

// -----------------------------------------------------------------------------

func GetCalendar(symbol string) *TradingCalendar {
	mic := micForSymbol(symbol)

	// Both Moscow Exchange segments share one calendar
	lookup := strings.ToLower(mic)
	if mic == "MISX" || mic == "RTSX" {
		lookup = "xmos"
	}

	if cal := calendar.GetCalendar(lookup); cal != nil {
		return &TradingCalendar{Calendar: cal, Timezone: cal.Loc}
	}

	if lookup == "xmos" {
		return &TradingCalendar{
			Fallback:    true,
			Timezone:    convert.Moscow(),
			openMinute:  moexOpenMinute,
			closeMinute: moexCloseMinute,
		}
	}

	// Unknown venue: treat every weekday minute as open
	return &TradingCalendar{Fallback: true, Timezone: time.UTC, openMinute: 0, closeMinute: 24 * 60}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}
		minute := t.Hour()*60 + t.Minute()
		return minute >= tc.openMinute && minute < tc.closeMinute
	}

	return tc.Calendar.IsOpen(t)
}
