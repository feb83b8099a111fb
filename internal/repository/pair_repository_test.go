package repository

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"statarb/internal/models"
)

// ============================================================
// PairRepository Tests
// ============================================================

func TestNewPairRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewPairRepository(db)
	if repo == nil {
		t.Fatal("NewPairRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestPairRepositoryCreate(t *testing.T) {
	tests := []struct {
		name        string
		pair        *models.PairData
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			pair: &models.PairData{
				PairName:    "AVAX/SOL",
				LongTicker:  "AVAX-USDT-SWAP",
				ShortTicker: "SOL-USDT-SWAP",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO pairs`).
					WithArgs("AVAX/SOL", "AVAX-USDT-SWAP", "SOL-USDT-SWAP", sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			},
			expectError: nil,
		},
		{
			name: "duplicate key error",
			pair: &models.PairData{
				PairName:    "AVAX/SOL",
				LongTicker:  "AVAX-USDT-SWAP",
				ShortTicker: "SOL-USDT-SWAP",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO pairs`).
					WithArgs("AVAX/SOL", "AVAX-USDT-SWAP", "SOL-USDT-SWAP", sqlmock.AnyArg()).
					WillReturnError(errors.New("UNIQUE constraint failed: pairs.pair_name"))
			},
			expectError: ErrPairExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewPairRepository(db)
			err = repo.Create(tt.pair)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected %v, got %v", tt.expectError, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestPairRepositoryGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "pair_name", "long_ticker", "short_ticker"}).
		AddRow(7, "AVAX/SOL", "AVAX-USDT-SWAP", "SOL-USDT-SWAP")
	mock.ExpectQuery(`SELECT id, pair_name, long_ticker, short_ticker`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	repo := NewPairRepository(db)
	pair, err := repo.GetByID(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.PairName != "AVAX/SOL" || pair.LongTicker != "AVAX-USDT-SWAP" {
		t.Errorf("unexpected pair: %+v", pair)
	}
}

func TestPairRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT id, pair_name, long_ticker, short_ticker`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "pair_name", "long_ticker", "short_ticker"}))

	repo := NewPairRepository(db)
	_, err = repo.GetByID(99)
	if !errors.Is(err, ErrPairNotFound) {
		t.Fatalf("expected ErrPairNotFound, got %v", err)
	}
}

func TestPairRepositoryDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM pairs`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPairRepository(db)
	if err := repo.Delete(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPairRepositoryDeleteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM pairs`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPairRepository(db)
	if err := repo.Delete(3); !errors.Is(err, ErrPairNotFound) {
		t.Fatalf("expected ErrPairNotFound, got %v", err)
	}
}
