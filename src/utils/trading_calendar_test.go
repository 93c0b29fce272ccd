package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMoexFallbackSession(t *testing.T) {
	cal := &TradingCalendar{
		Fallback:    true,
		Timezone:    time.FixedZone("MSK", 3*60*60),
		openMinute:  moexOpenMinute,
		closeMinute: moexCloseMinute,
	}

	// Wednesday 12:00 MSK
	assert.True(t, cal.IsOpenOnMinute(time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)))
	// Wednesday 23:55 MSK
	assert.False(t, cal.IsOpenOnMinute(time.Date(2025, 3, 5, 20, 55, 0, 0, time.UTC)))
	// Saturday
	assert.False(t, cal.IsOpenOnMinute(time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC)))
}

func TestMicForSymbol(t *testing.T) {
	assert.Equal(t, "RTSX", micForSymbol("SiZ5@rtsx"))
	assert.Equal(t, "MISX", micForSymbol("SBER"))
}

func TestSchedulerWithoutSymbols(t *testing.T) {
	ms := NewMarketScheduler(nil, nil)
	assert.False(t, ms.AnyMarketOpenAt(time.Now()))
}
