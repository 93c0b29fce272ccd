package storage

import (
	"database/sql"
	"time"

	"tradeapi-connector/src/helpers"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewStorageError("failed to open sqlite database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewStorageError("failed to reach sqlite database", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	// SQLite types: INTEGER for int64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS stream_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			subscription_id TEXT NOT NULL,
			symbol TEXT,
			message_type TEXT,
			received_at INTEGER NOT NULL,
			payload TEXT NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewStorageError("failed to create stream_events", err)
	}

	query = `CREATE INDEX IF NOT EXISTS stream_events_received_at ON stream_events (received_at);`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewStorageError("failed to index stream_events", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveEvents(events []models.MStreamEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO stream_events (kind, subscription_id, symbol, message_type, received_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return helpers.NewStorageError("failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		row, err := toRow(ev)
		if err != nil {
			d.Logger.Warning("skipping event of %s: %v", ev.SubscriptionID, err)
			continue
		}
		if _, err := stmt.Exec(row.Kind, row.SubscriptionID, row.Symbol, row.MessageType, row.ReceivedAt, row.Payload); err != nil {
			return helpers.NewStorageError("failed to insert event", err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).UnixMilli()

	d.Logger.Info("Cleaning up events older than %d days (received_at < %d)...", retentionDays, cutoff)

	res, err := d.DB.Exec("DELETE FROM stream_events WHERE received_at < ?", cutoff)
	if err != nil {
		return helpers.NewStorageError("cleanup stream_events", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		d.Logger.Info("Cleanup completed, %d event(s) removed", n)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
