package convert

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoards(t *testing.T) {
	assert.Equal(t, "FUT", BoardToBroker("SPBFUT"))
	assert.Equal(t, "OPT", BoardToBroker("SPBOPT"))
	assert.Equal(t, "TQBR", BoardToBroker("TQBR"))
	assert.Equal(t, "SPBFUT", BoardFromBroker("FUT"))
	assert.Equal(t, "SPBFUT.SiZ5", Dataname("FUT", "SiZ5"))
}

func TestSplitDataname(t *testing.T) {
	board, ticker, ok := SplitDataname("SPBFUT.Si.Z5")
	assert.True(t, ok)
	assert.Equal(t, "FUT", board)
	assert.Equal(t, "Si.Z5", ticker)

	_, ticker, ok = SplitDataname("SBER")
	assert.False(t, ok)
	assert.Equal(t, "SBER", ticker)
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "SBER@MISX", Symbol("SBER", "MISX"))

	ticker, mic, ok := ParseSymbol("SBER@MISX")
	assert.True(t, ok)
	assert.Equal(t, "SBER", ticker)
	assert.Equal(t, "MISX", mic)

	_, _, ok = ParseSymbol("SBER")
	assert.False(t, ok)
}

func TestTimeframes(t *testing.T) {
	name, intraday, err := TimeframeToBroker("m15")
	require.NoError(t, err)
	assert.Equal(t, "TIME_FRAME_M15", name)
	assert.True(t, intraday)

	tf, intraday, err := TimeframeFromBroker("TIME_FRAME_D")
	require.NoError(t, err)
	assert.Equal(t, "D1", tf)
	assert.False(t, intraday)

	_, _, err = TimeframeToBroker("M2")
	assert.Error(t, err)

	assert.Equal(t, "TIME_FRAME_W", BrokerTimeframe("W1"))
	assert.Equal(t, "TIME_FRAME_H1", BrokerTimeframe("TIME_FRAME_H1"))
}

func TestMoscowTime(t *testing.T) {
	wall := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	utc := MSKToUTC(wall)
	assert.Equal(t, time.Date(2025, 3, 5, 7, 0, 0, 0, time.UTC), utc)

	msk := UTCToMSK(utc)
	assert.Equal(t, 10, msk.Hour())
}

func TestPrices(t *testing.T) {
	step := decimal.RequireFromString("0.01")
	face := decimal.NewFromInt(1000)

	got := PriceToBroker("TQOB", decimal.RequireFromString("987.654"), step, face)
	assert.True(t, got.Equal(decimal.RequireFromString("98.77")), got.String())

	back := PriceFromBroker("TQOB", decimal.RequireFromString("98.77"), face)
	assert.True(t, back.Equal(decimal.RequireFromString("987.7")), back.String())

	shares := PriceToBroker("TQBR", decimal.RequireFromString("301.237"), step, face)
	assert.True(t, shares.Equal(decimal.RequireFromString("301.24")), shares.String())

	assert.True(t, StepFromDecimals(5, 1).Equal(decimal.RequireFromString("0.5")))
}

func TestParseDecimal(t *testing.T) {
	d, err := ParseDecimal(" 12.50 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("12.5")))

	d, err = ParseDecimal("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseDecimal("abc")
	assert.Error(t, err)
}
