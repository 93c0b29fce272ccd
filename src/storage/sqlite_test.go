package storage

import (
	"path/filepath"
	"testing"
	"time"

	"tradeapi-connector/src/config"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"
	"tradeapi-connector/src/tradeapi"
	"tradeapi-connector/src/tradeapi/tradeapitest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newSQLite(t *testing.T) *AsyncSQLiteDB {
	cfg := config.Default()
	cfg.Storage.DBType = "sqlite"
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "events.db")

	recorder, err := NewRecorder(cfg, logger.FromZap(zaptest.NewLogger(t), "storage"))
	require.NoError(t, err)
	db, ok := recorder.(*AsyncSQLiteDB)
	require.True(t, ok)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return db
}

func countEvents(t *testing.T, db *AsyncSQLiteDB) int {
	var n int
	require.NoError(t, db.DB.QueryRow("SELECT COUNT(*) FROM stream_events").Scan(&n))
	return n
}

func TestSQLiteSavesEventsAsJSON(t *testing.T) {
	db := newSQLite(t)
	quote := tradeapi.List(tradeapitest.Quote(tradeapitest.Schema(), "301.5", "SBER@MISX"), "quote")[0]

	now := time.Now()
	require.NoError(t, db.SaveEvents([]models.MStreamEvent{
		{Kind: models.KindQuote, SubscriptionID: "ABC", Payload: quote, ReceivedAt: now},
		{Kind: models.KindBars, SubscriptionID: "DEF", ReceivedAt: now},
	}))
	require.NoError(t, db.SaveEvents(nil))
	assert.Equal(t, 2, countEvents(t, db))

	var symbol, messageType, payload string
	var receivedAt int64
	err := db.DB.QueryRow("SELECT symbol, message_type, received_at, payload FROM stream_events WHERE subscription_id = ?", "ABC").
		Scan(&symbol, &messageType, &receivedAt, &payload)
	require.NoError(t, err)
	assert.Equal(t, "SBER@MISX", symbol)
	assert.Equal(t, "grpc.tradeapi.v1.marketdata.Quote", messageType)
	assert.Equal(t, now.UnixMilli(), receivedAt)
	assert.JSONEq(t, `{"symbol":"SBER@MISX","last":"301.5"}`, payload)
}

func TestSQLiteCleanupHonoursRetention(t *testing.T) {
	db := newSQLite(t)

	require.NoError(t, db.SaveEvents([]models.MStreamEvent{
		{Kind: models.KindQuote, SubscriptionID: "OLD", ReceivedAt: time.Now().AddDate(0, 0, -30)},
		{Kind: models.KindQuote, SubscriptionID: "NEW", ReceivedAt: time.Now()},
	}))
	require.NoError(t, db.CleanupOldData())

	var id string
	require.NoError(t, db.DB.QueryRow("SELECT subscription_id FROM stream_events").Scan(&id))
	assert.Equal(t, "NEW", id)
	assert.Equal(t, 1, countEvents(t, db))
}

func TestSQLiteTablesSurviveReopen(t *testing.T) {
	db := newSQLite(t)
	require.NoError(t, db.SaveEvents([]models.MStreamEvent{{Kind: models.KindQuote, SubscriptionID: "A", ReceivedAt: time.Now()}}))
	require.NoError(t, db.Close())

	require.NoError(t, db.Initialize())
	assert.Equal(t, 1, countEvents(t, db))
}

func TestNewRecorderDisabled(t *testing.T) {
	recorder, err := NewRecorder(config.Default(), logger.FromZap(zaptest.NewLogger(t), "storage"))
	require.NoError(t, err)
	assert.Nil(t, recorder)
}

func TestTableReferencePattern(t *testing.T) {
	assert.True(t, tableRefRegex.MatchString("public.watchlist.symbol"))
	assert.False(t, tableRefRegex.MatchString("SBER@MISX"))
	assert.False(t, tableRefRegex.MatchString("TQBR.SBER"))
}
