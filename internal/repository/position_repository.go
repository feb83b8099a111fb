package repository

import (
	"database/sql"
	"errors"
	"time"

	"statarb/internal/models"
)

// Ошибки репозитория позиций
var ErrPositionNotFound = errors.New("position not found")

const positionColumns = `id, position_id, pair_id, symbol, side, size, entry_price, closing_price, current_price, leverage, allocated_amount, unrealized_pnl, unrealized_pnl_percent, realized_pnl, realized_pnl_percent, opening_fees, funding_fees, closing_fees, status, open_time, last_updated`

// PositionRepository - работа с таблицей positions
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create сохраняет новую позицию и проставляет ее ID
func (r *PositionRepository) Create(p *models.Position) error {
	query := `
		INSERT INTO positions (position_id, pair_id, symbol, side, size, entry_price, closing_price, current_price, leverage, allocated_amount, unrealized_pnl, unrealized_pnl_percent, realized_pnl, realized_pnl_percent, opening_fees, funding_fees, closing_fees, status, open_time, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id`

	if p.OpenTime.IsZero() {
		p.OpenTime = time.Now()
	}
	p.LastUpdated = time.Now()

	return r.db.QueryRow(
		query,
		p.PositionID,
		p.PairID,
		p.Symbol,
		p.Side,
		p.Size,
		p.EntryPrice,
		p.ClosingPrice,
		p.CurrentPrice,
		p.Leverage,
		p.AllocatedAmount,
		p.UnrealizedPnL,
		p.UnrealizedPnLPercent,
		p.RealizedPnL,
		p.RealizedPnLPercent,
		p.OpeningFees,
		p.FundingFees,
		p.ClosingFees,
		p.Status,
		p.OpenTime,
		p.LastUpdated,
	).Scan(&p.ID)
}

// Update обновляет существующую позицию по ее биржевому ID
func (r *PositionRepository) Update(p *models.Position) error {
	query := `
		UPDATE positions
		SET size = $1, entry_price = $2, closing_price = $3, current_price = $4, allocated_amount = $5, unrealized_pnl = $6, unrealized_pnl_percent = $7, realized_pnl = $8, realized_pnl_percent = $9, opening_fees = $10, funding_fees = $11, closing_fees = $12, status = $13, last_updated = $14
		WHERE position_id = $15`

	p.LastUpdated = time.Now()

	result, err := r.db.Exec(
		query,
		p.Size,
		p.EntryPrice,
		p.ClosingPrice,
		p.CurrentPrice,
		p.AllocatedAmount,
		p.UnrealizedPnL,
		p.UnrealizedPnLPercent,
		p.RealizedPnL,
		p.RealizedPnLPercent,
		p.OpeningFees,
		p.FundingFees,
		p.ClosingFees,
		p.Status,
		p.LastUpdated,
		p.PositionID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrPositionNotFound
	}

	return nil
}

// GetByPositionID возвращает позицию по биржевому ID
func (r *PositionRepository) GetByPositionID(positionID string) (*models.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE position_id = $1`

	return r.scanOne(r.db.QueryRow(query, positionID))
}

// GetOpenByPairAndSide возвращает открытую позицию пары на заданной стороне
func (r *PositionRepository) GetOpenByPairAndSide(pairID int64, side models.PositionSide) (*models.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE pair_id = $1 AND side = $2 AND status = $3
		ORDER BY id DESC
		LIMIT 1`

	return r.scanOne(r.db.QueryRow(query, pairID, side, models.StatusOpen))
}

// GetAllOpen возвращает все открытые позиции
func (r *PositionRepository) GetAllOpen() ([]*models.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE status = $1
		ORDER BY open_time`

	rows, err := r.db.Query(query, models.StatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return positions, nil
}

// CountOpen возвращает количество открытых позиций
func (r *PositionRepository) CountOpen() (int, error) {
	query := `SELECT COUNT(*) FROM positions WHERE status = $1`

	var count int
	err := r.db.QueryRow(query, models.StatusOpen).Scan(&count)
	if err != nil {
		return 0, err
	}

	return count, nil
}

// scanner покрывает *sql.Row и *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func (r *PositionRepository) scanOne(row scanner) (*models.Position, error) {
	p := &models.Position{}
	err := row.Scan(
		&p.ID,
		&p.PositionID,
		&p.PairID,
		&p.Symbol,
		&p.Side,
		&p.Size,
		&p.EntryPrice,
		&p.ClosingPrice,
		&p.CurrentPrice,
		&p.Leverage,
		&p.AllocatedAmount,
		&p.UnrealizedPnL,
		&p.UnrealizedPnLPercent,
		&p.RealizedPnL,
		&p.RealizedPnLPercent,
		&p.OpeningFees,
		&p.FundingFees,
		&p.ClosingFees,
		&p.Status,
		&p.OpenTime,
		&p.LastUpdated,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}

	return p, nil
}
