package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"statarb/internal/models"
)

// ============================================================
// PositionRepository Tests
// ============================================================

func positionRowColumns() []string {
	return []string{
		"id", "position_id", "pair_id", "symbol", "side", "size", "entry_price",
		"closing_price", "current_price", "leverage", "allocated_amount",
		"unrealized_pnl", "unrealized_pnl_percent", "realized_pnl", "realized_pnl_percent",
		"opening_fees", "funding_fees", "closing_fees", "status", "open_time", "last_updated",
	}
}

func addPositionRow(rows *sqlmock.Rows, id int64, positionID string, pairID int64, side models.PositionSide, status models.PositionStatus) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(
		id, positionID, pairID, "AVAX-USDT-SWAP", side, "12.5", "10.2",
		"0", "10.2", "1", "127.5",
		"0", "0", "0", "0",
		"0.1275", "0", "0", status, now, now,
	)
}

func TestPositionRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO positions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	repo := NewPositionRepository(db)
	p := &models.Position{
		PositionID: "virt-1",
		PairID:     7,
		Symbol:     "AVAX-USDT-SWAP",
		Side:       models.SideLong,
		Size:       decimal.NewFromFloat(12.5),
		EntryPrice: decimal.NewFromFloat(10.2),
		Status:     models.StatusOpen,
	}
	if err := repo.Create(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != 42 {
		t.Errorf("expected ID 42, got %d", p.ID)
	}
	if p.OpenTime.IsZero() {
		t.Error("OpenTime not set")
	}
}

func TestPositionRepositoryUpdateNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE positions`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPositionRepository(db)
	err = repo.Update(&models.Position{PositionID: "missing"})
	if !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
}

func TestPositionRepositoryGetOpenByPairAndSide(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := addPositionRow(sqlmock.NewRows(positionRowColumns()), 1, "virt-1", 7, models.SideLong, models.StatusOpen)
	mock.ExpectQuery(`SELECT (.+) FROM positions`).
		WithArgs(int64(7), models.SideLong, models.StatusOpen).
		WillReturnRows(rows)

	repo := NewPositionRepository(db)
	p, err := repo.GetOpenByPairAndSide(7, models.SideLong)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PositionID != "virt-1" {
		t.Errorf("expected virt-1, got %s", p.PositionID)
	}
	if !p.Size.Equal(decimal.NewFromFloat(12.5)) {
		t.Errorf("expected size 12.5, got %s", p.Size)
	}
}

func TestPositionRepositoryGetOpenByPairAndSideNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM positions`).
		WithArgs(int64(7), models.SideShort, models.StatusOpen).
		WillReturnRows(sqlmock.NewRows(positionRowColumns()))

	repo := NewPositionRepository(db)
	_, err = repo.GetOpenByPairAndSide(7, models.SideShort)
	if !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
}

func TestPositionRepositoryGetAllOpen(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(positionRowColumns())
	rows = addPositionRow(rows, 1, "virt-1", 7, models.SideLong, models.StatusOpen)
	rows = addPositionRow(rows, 2, "virt-2", 7, models.SideShort, models.StatusOpen)
	mock.ExpectQuery(`SELECT (.+) FROM positions`).
		WithArgs(models.StatusOpen).
		WillReturnRows(rows)

	repo := NewPositionRepository(db)
	positions, err := repo.GetAllOpen()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
	if positions[1].Side != models.SideShort {
		t.Errorf("expected short side, got %s", positions[1].Side)
	}
}

func TestIsBusyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"table locked", errors.New("database table is locked"), true},
		{"constraint", errors.New("UNIQUE constraint failed"), false},
		{"other", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBusyError(tt.err); got != tt.want {
				t.Errorf("IsBusyError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
