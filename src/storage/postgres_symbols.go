package storage

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"tradeapi-connector/src/models"
)

// Symbol lists in the configuration may name a column holding symbols
// ("schema.table.field") instead of listing them. Broker symbols contain
// '@' and datanames have two parts, so neither matches.
var tableRefRegex = regexp.MustCompile(`^(\w+)\.(\w+)\.(\w+)$`)

// -----------------------------------------------------------------------------

// ExpandSymbols replaces table references in raw by the symbols stored in
// the referenced column. Other entries are kept as they are.
func (d *PostgresDB) ExpandSymbols(raw []string) ([]string, error) {
	var symbols []string
	for _, sym := range raw {
		matches := tableRefRegex.FindStringSubmatch(sym)
		if len(matches) != 4 {
			symbols = append(symbols, sym)
			continue
		}

		loaded, err := d.GetSymbolsFromTable(matches[1], matches[2], matches[3])
		if err != nil {
			return symbols, fmt.Errorf("failed to load symbols from %s: %w", sym, err)
		}
		symbols = append(symbols, loaded...)
	}
	return symbols, nil
}

// -----------------------------------------------------------------------------

// RegisterSubscriptions upserts the active subscriptions.
func (d *PostgresDB) RegisterSubscriptions(subs []models.MSubscription) error {
	if len(subs) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tableName := fmt.Sprintf(`"%s"."subscriptions"`, d.Schema)
	query := fmt.Sprintf(`
		INSERT INTO %s (id, kind, symbols, timeframe, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			symbols = EXCLUDED.symbols,
			timeframe = EXCLUDED.timeframe,
			updated_at = EXCLUDED.updated_at
	`, tableName)

	stmt, err := tx.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range subs {
		_, err := stmt.Exec(s.ID, string(s.Kind), strings.Join(s.Symbols, ","), s.Timeframe, time.Now().UTC())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) GetSymbolsFromTable(schema, table, field string) ([]string, error) {
	// identifiers are limited to \w+ by tableRefRegex and quoted here
	query := fmt.Sprintf(`SELECT "%s" FROM "%s"."%s"`, field, schema, table)

	rows, err := d.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s != "" {
			symbols = append(symbols, s)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return symbols, nil
}
