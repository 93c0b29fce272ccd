package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradeapi-connector/src/helpers"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresDB names the database schema after the running executable.
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewStorageError("failed to open postgres database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewStorageError("failed to reach postgres database", err)
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewStorageError(fmt.Sprintf("failed to create schema %s", d.Schema), err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."stream_events" (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			subscription_id TEXT NOT NULL,
			symbol TEXT,
			message_type TEXT,
			received_at BIGINT NOT NULL,
			payload JSONB NOT NULL
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewStorageError("failed to create stream_events", err)
	}

	query = fmt.Sprintf(`CREATE INDEX IF NOT EXISTS stream_events_received_at ON "%s"."stream_events" (received_at);`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewStorageError("failed to index stream_events", err)
	}

	// Registered subscriptions (config/metadata)
	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."subscriptions" (
			id TEXT PRIMARY KEY,
			kind TEXT,
			symbols TEXT,
			timeframe TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewStorageError("failed to create subscriptions", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveEvents(events []models.MStreamEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO "%s"."stream_events" (kind, subscription_id, symbol, message_type, received_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, d.Schema)
	stmt, err := tx.Prepare(query)
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

func (d *PostgresDB) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).UnixMilli()

	d.Logger.Info("Cleaning up events older than %d days (received_at < %d)...", retentionDays, cutoff)

	if _, err := d.DB.Exec(fmt.Sprintf(`DELETE FROM "%s"."stream_events" WHERE received_at < $1`, d.Schema), cutoff); err != nil {
		return helpers.NewStorageError("cleanup stream_events", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
