package repository

import (
	"database/sql"
	"errors"
	"time"

	"statarb/internal/models"
)

// Ошибки репозитория портфеля
var ErrPortfolioNotFound = errors.New("portfolio not found")

// PortfolioRepository - работа с таблицей portfolios.
// Каждое сохранение пишет новую строку: история снимков леджера
// сохраняется, актуальным считается снимок с максимальным id.
type PortfolioRepository struct {
	db *sql.DB
}

// NewPortfolioRepository создает новый экземпляр репозитория
func NewPortfolioRepository(db *sql.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Save записывает снимок портфеля и проставляет его ID
func (r *PortfolioRepository) Save(p *models.Portfolio) error {
	query := `
		INSERT INTO portfolios (total_balance, available_balance, reserved_balance, initial_balance, unrealized_pnl, realized_pnl, total_fees_accrued, max_drawdown, high_water_mark, active_positions_count, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.LastUpdated = time.Now()

	return r.db.QueryRow(
		query,
		p.TotalBalance,
		p.AvailableBalance,
		p.ReservedBalance,
		p.InitialBalance,
		p.UnrealizedPnL,
		p.RealizedPnL,
		p.TotalFeesAccrued,
		p.MaxDrawdown,
		p.HighWaterMark,
		p.ActivePositionsCount,
		p.CreatedAt,
		p.LastUpdated,
	).Scan(&p.ID)
}

// Latest возвращает последний сохраненный снимок портфеля
func (r *PortfolioRepository) Latest() (*models.Portfolio, error) {
	query := `
		SELECT id, total_balance, available_balance, reserved_balance, initial_balance, unrealized_pnl, realized_pnl, total_fees_accrued, max_drawdown, high_water_mark, active_positions_count, created_at, last_updated
		FROM portfolios
		ORDER BY id DESC
		LIMIT 1`

	p := &models.Portfolio{}
	err := r.db.QueryRow(query).Scan(
		&p.ID,
		&p.TotalBalance,
		&p.AvailableBalance,
		&p.ReservedBalance,
		&p.InitialBalance,
		&p.UnrealizedPnL,
		&p.RealizedPnL,
		&p.TotalFeesAccrued,
		&p.MaxDrawdown,
		&p.HighWaterMark,
		&p.ActivePositionsCount,
		&p.CreatedAt,
		&p.LastUpdated,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPortfolioNotFound
		}
		return nil, err
	}

	return p, nil
}
