package repository

import (
	"database/sql"
	"fmt"
	"strings"
)

// InitSchema создает таблицы, если их еще нет.
// Денежные значения хранятся как TEXT: decimal сериализуется без потери
// точности и одинаково читается из sqlite и postgres.
func InitSchema(db *sql.DB, driver string) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS pairs (
				id %s,
				pair_name TEXT NOT NULL UNIQUE,
				long_ticker TEXT NOT NULL,
				short_ticker TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`, idColumn),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS portfolios (
				id %s,
				total_balance TEXT NOT NULL,
				available_balance TEXT NOT NULL,
				reserved_balance TEXT NOT NULL,
				initial_balance TEXT NOT NULL,
				unrealized_pnl TEXT NOT NULL,
				realized_pnl TEXT NOT NULL,
				total_fees_accrued TEXT NOT NULL,
				max_drawdown TEXT NOT NULL,
				high_water_mark TEXT NOT NULL,
				active_positions_count INTEGER NOT NULL,
				created_at TIMESTAMP NOT NULL,
				last_updated TIMESTAMP NOT NULL
			)`, idColumn),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS positions (
				id %s,
				position_id TEXT NOT NULL UNIQUE,
				pair_id INTEGER NOT NULL,
				symbol TEXT NOT NULL,
				side TEXT NOT NULL,
				size TEXT NOT NULL,
				entry_price TEXT NOT NULL,
				closing_price TEXT NOT NULL,
				current_price TEXT NOT NULL,
				leverage TEXT NOT NULL,
				allocated_amount TEXT NOT NULL,
				unrealized_pnl TEXT NOT NULL,
				unrealized_pnl_percent TEXT NOT NULL,
				realized_pnl TEXT NOT NULL,
				realized_pnl_percent TEXT NOT NULL,
				opening_fees TEXT NOT NULL,
				funding_fees TEXT NOT NULL,
				closing_fees TEXT NOT NULL,
				status TEXT NOT NULL,
				open_time TIMESTAMP NOT NULL,
				last_updated TIMESTAMP NOT NULL
			)`, idColumn),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS accounts (
				id %s,
				exchange TEXT NOT NULL UNIQUE,
				api_key_enc TEXT NOT NULL,
				secret_key_enc TEXT NOT NULL,
				passphrase_enc TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`, idColumn),
		`CREATE INDEX IF NOT EXISTS idx_positions_pair_status ON positions (pair_id, status)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// IsBusyError сообщает, вызвана ли ошибка конкурентным доступом к базе
// (SQLITE_BUSY / database is locked). Такие ошибки имеет смысл повторять.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}
