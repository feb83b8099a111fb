package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"statarb/internal/models"
)

// Ошибки репозитория пар
var (
	ErrPairNotFound = errors.New("pair not found")
	ErrPairExists   = errors.New("pair already exists")
)

// PairRepository - работа с таблицей pairs
type PairRepository struct {
	db *sql.DB
}

// NewPairRepository создает новый экземпляр репозитория
func NewPairRepository(db *sql.DB) *PairRepository {
	return &PairRepository{db: db}
}

// Create создает новую торговую пару
func (r *PairRepository) Create(pair *models.PairData) error {
	query := `
		INSERT INTO pairs (pair_name, long_ticker, short_ticker, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.db.QueryRow(
		query,
		pair.PairName,
		pair.LongTicker,
		pair.ShortTicker,
		time.Now(),
	).Scan(&pair.ID)

	if err != nil {
		if isPairUniqueViolation(err) {
			return ErrPairExists
		}
		return err
	}

	return nil
}

// GetByID возвращает пару по ID
func (r *PairRepository) GetByID(id int64) (*models.PairData, error) {
	query := `
		SELECT id, pair_name, long_ticker, short_ticker
		FROM pairs
		WHERE id = $1`

	pair := &models.PairData{}
	err := r.db.QueryRow(query, id).Scan(
		&pair.ID,
		&pair.PairName,
		&pair.LongTicker,
		&pair.ShortTicker,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPairNotFound
		}
		return nil, err
	}

	return pair, nil
}

// GetByName возвращает пару по имени
func (r *PairRepository) GetByName(name string) (*models.PairData, error) {
	query := `
		SELECT id, pair_name, long_ticker, short_ticker
		FROM pairs
		WHERE pair_name = $1`

	pair := &models.PairData{}
	err := r.db.QueryRow(query, name).Scan(
		&pair.ID,
		&pair.PairName,
		&pair.LongTicker,
		&pair.ShortTicker,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPairNotFound
		}
		return nil, err
	}

	return pair, nil
}

// GetAll возвращает все пары
func (r *PairRepository) GetAll() ([]*models.PairData, error) {
	query := `
		SELECT id, pair_name, long_ticker, short_ticker
		FROM pairs
		ORDER BY id`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []*models.PairData
	for rows.Next() {
		pair := &models.PairData{}
		err := rows.Scan(
			&pair.ID,
			&pair.PairName,
			&pair.LongTicker,
			&pair.ShortTicker,
		)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return pairs, nil
}

// Delete удаляет пару
func (r *PairRepository) Delete(id int64) error {
	query := `DELETE FROM pairs WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrPairNotFound
	}

	return nil
}

// isPairUniqueViolation проверяет, является ли ошибка нарушением UNIQUE constraint
func isPairUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "23505")
}
