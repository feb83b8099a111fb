package service

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"statarb/internal/models"
	"statarb/internal/repository"
	"statarb/internal/trading"
)

type fakeTracker struct {
	open map[int64]bool
}

func (t *fakeTracker) Get(pairID int64) (trading.PairPositions, bool) {
	return trading.PairPositions{}, t.open[pairID]
}

func newTestPairService(t *testing.T) (*PairService, sqlmock.Sqlmock, *fakeTracker) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tracker := &fakeTracker{open: make(map[int64]bool)}
	svc := NewPairService(repository.NewPairRepository(db), tracker)
	return svc, mock, tracker
}

func pairRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "pair_name", "long_ticker", "short_ticker"})
}

func TestCreatePairValidation(t *testing.T) {
	tests := []struct {
		name    string
		pair    *models.PairData
		wantErr error
	}{
		{
			name:    "empty long ticker",
			pair:    &models.PairData{LongTicker: "", ShortTicker: "SOL-USDT-SWAP"},
			wantErr: ErrInvalidTicker,
		},
		{
			name:    "lowercase ticker",
			pair:    &models.PairData{LongTicker: "ada-usdt-swap", ShortTicker: "SOL-USDT-SWAP"},
			wantErr: ErrInvalidTicker,
		},
		{
			name:    "no separator",
			pair:    &models.PairData{LongTicker: "ADAUSDT", ShortTicker: "SOL-USDT-SWAP"},
			wantErr: ErrInvalidTicker,
		},
		{
			name:    "identical legs",
			pair:    &models.PairData{LongTicker: "ADA-USDT-SWAP", ShortTicker: "ADA-USDT-SWAP"},
			wantErr: ErrSameTickers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestPairService(t)
			err := svc.CreatePair(tt.pair)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CreatePair() err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreatePairSuccess(t *testing.T) {
	svc, mock, _ := newTestPairService(t)

	mock.ExpectQuery("SELECT (.+) FROM pairs").WillReturnRows(pairRows())
	mock.ExpectQuery("INSERT INTO pairs").
		WithArgs("ADA-USDT-SWAP / SOL-USDT-SWAP", "ADA-USDT-SWAP", "SOL-USDT-SWAP", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	pair := &models.PairData{LongTicker: "ADA-USDT-SWAP", ShortTicker: "SOL-USDT-SWAP"}
	if err := svc.CreatePair(pair); err != nil {
		t.Fatalf("CreatePair() err = %v", err)
	}
	if pair.PairName != "ADA-USDT-SWAP / SOL-USDT-SWAP" {
		t.Errorf("auto pair name = %q", pair.PairName)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCreatePairLimit(t *testing.T) {
	svc, mock, _ := newTestPairService(t)

	rows := pairRows()
	for i := 0; i < MaxPairs; i++ {
		rows.AddRow(int64(i+1), "pair", "A-USDT-SWAP", "B-USDT-SWAP")
	}
	mock.ExpectQuery("SELECT (.+) FROM pairs").WillReturnRows(rows)

	pair := &models.PairData{LongTicker: "ADA-USDT-SWAP", ShortTicker: "SOL-USDT-SWAP"}
	if err := svc.CreatePair(pair); !errors.Is(err, ErrMaxPairsReached) {
		t.Errorf("CreatePair() err = %v, want ErrMaxPairsReached", err)
	}
}

func TestDeletePairWithOpenPositions(t *testing.T) {
	svc, _, tracker := newTestPairService(t)
	tracker.open[1] = true

	if err := svc.DeletePair(1); !errors.Is(err, ErrPairHasOpenPosition) {
		t.Errorf("DeletePair() err = %v, want ErrPairHasOpenPosition", err)
	}
}

func TestDeletePairNotFound(t *testing.T) {
	svc, mock, _ := newTestPairService(t)

	mock.ExpectExec("DELETE FROM pairs").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := svc.DeletePair(7); !errors.Is(err, ErrPairNotFound) {
		t.Errorf("DeletePair() err = %v, want ErrPairNotFound", err)
	}
}

func TestGetPairNotFound(t *testing.T) {
	svc, mock, _ := newTestPairService(t)

	mock.ExpectQuery("SELECT (.+) FROM pairs").
		WithArgs(int64(9)).
		WillReturnRows(pairRows())

	if _, err := svc.GetPair(9); !errors.Is(err, ErrPairNotFound) {
		t.Errorf("GetPair() err = %v, want ErrPairNotFound", err)
	}
}
