package convert

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Boards and tickers
// -----------------------------------------------------------------------------

// BoardToBroker maps a canonical board code to the broker's code.
func BoardToBroker(board string) string {
	switch board {
	case "SPBFUT":
		return "FUT"
	case "SPBOPT":
		return "OPT"
	}
	return board
}

// BoardFromBroker maps a broker board code to the canonical one.
func BoardFromBroker(board string) string {
	switch board {
	case "FUT":
		return "SPBFUT"
	case "OPT":
		return "SPBOPT"
	}
	return board
}

// SplitDataname splits "<board>.<ticker>" into the broker board and ticker.
// The ticker may itself contain dots. ok is false when no board is present.
func SplitDataname(dataname string) (board, ticker string, ok bool) {
	parts := strings.SplitN(dataname, ".", 2)
	if len(parts) < 2 || parts[0] == "" {
		return "", dataname, false
	}
	return BoardToBroker(parts[0]), parts[1], true
}

// Dataname builds "<canonical board>.<ticker>" from a broker board.
func Dataname(brokerBoard, ticker string) string {
	return BoardFromBroker(brokerBoard) + "." + ticker
}

// Symbol returns the broker symbol "ticker@mic".
func Symbol(ticker, mic string) string {
	return ticker + "@" + mic
}

// ParseSymbol splits "ticker@mic".
func ParseSymbol(symbol string) (ticker, mic string, ok bool) {
	i := strings.LastIndex(symbol, "@")
	if i <= 0 || i == len(symbol)-1 {
		return symbol, "", false
	}
	return symbol[:i], symbol[i+1:], true
}

// -----------------------------------------------------------------------------
// Timeframes
// -----------------------------------------------------------------------------

type timeframe struct {
	canonical string
	broker    string
	intraday  bool
}

var timeframes = []timeframe{
	{"M1", "TIME_FRAME_M1", true},
	{"M5", "TIME_FRAME_M5", true},
	{"M15", "TIME_FRAME_M15", true},
	{"M30", "TIME_FRAME_M30", true},
	{"H1", "TIME_FRAME_H1", true},
	{"H2", "TIME_FRAME_H2", true},
	{"H4", "TIME_FRAME_H4", true},
	{"H8", "TIME_FRAME_H8", true},
	{"D1", "TIME_FRAME_D", false},
	{"W1", "TIME_FRAME_W", false},
	{"MN1", "TIME_FRAME_MN", false},
	{"QR1", "TIME_FRAME_QR", false},
}

// TimeframeToBroker converts "M1", "H1", "D1"... to the broker enum value name.
func TimeframeToBroker(tf string) (string, bool, error) {
	for _, t := range timeframes {
		if strings.EqualFold(t.canonical, tf) {
			return t.broker, t.intraday, nil
		}
	}
	return "", false, fmt.Errorf("unknown timeframe %q", tf)
}

// TimeframeFromBroker is the inverse of TimeframeToBroker.
func TimeframeFromBroker(name string) (string, bool, error) {
	for _, t := range timeframes {
		if t.broker == name {
			return t.canonical, t.intraday, nil
		}
	}
	return "", false, fmt.Errorf("unknown broker timeframe %q", name)
}

// BrokerTimeframe returns the broker name for tf, or tf unchanged when it is
// already a broker name or unknown.
func BrokerTimeframe(tf string) string {
	if name, _, err := TimeframeToBroker(tf); err == nil {
		return name
	}
	return tf
}

// -----------------------------------------------------------------------------
// Time zones
// -----------------------------------------------------------------------------

var moscow = loadMoscow()

func loadMoscow() *time.Location {
	if loc, err := time.LoadLocation("Europe/Moscow"); err == nil {
		return loc
	}
	return time.FixedZone("MSK", 3*60*60)
}

// Moscow returns the exchange time zone.
func Moscow() *time.Location {
	return moscow
}

// UTCToMSK converts an instant to Moscow wall clock time.
func UTCToMSK(t time.Time) time.Time {
	return t.In(moscow)
}

// MSKToUTC interprets the wall clock of t as Moscow time and returns UTC.
func MSKToUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), moscow).UTC()
}

// -----------------------------------------------------------------------------
// Prices
// -----------------------------------------------------------------------------

var (
	hundred    = decimal.NewFromInt(100)
	bondBoards = map[string]bool{"TQOB": true, "TQCB": true, "TQRD": true, "TQIR": true, "TQOD": true}
)

// IsBondBoard reports boards quoted in percent of face value.
func IsBondBoard(board string) bool {
	return bondBoards[board]
}

// ParseDecimal parses the broker's decimal string representation.
func ParseDecimal(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}

// PriceToBroker converts a price in money to the broker's quote. Bond prices
// become percent of faceValue. The result is rounded to minStep when it is
// positive.
func PriceToBroker(board string, price, minStep, faceValue decimal.Decimal) decimal.Decimal {
	if IsBondBoard(board) && faceValue.IsPositive() {
		price = price.Mul(hundred).Div(faceValue)
	}
	return RoundToStep(price, minStep)
}

// PriceFromBroker converts a broker quote to a price in money.
func PriceFromBroker(board string, price, faceValue decimal.Decimal) decimal.Decimal {
	if IsBondBoard(board) && faceValue.IsPositive() {
		return price.Mul(faceValue).Div(hundred)
	}
	return price
}

// RoundToStep rounds price to the nearest multiple of step.
func RoundToStep(price, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return price
	}
	return price.Div(step).Round(0).Mul(step)
}

// StepFromDecimals returns 10^-decimals * minStep, the way the asset
// reference expresses the minimum price increment.
func StepFromDecimals(minStep int64, decimals int32) decimal.Decimal {
	return decimal.New(minStep, -decimals)
}
