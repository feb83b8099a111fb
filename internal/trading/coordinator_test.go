package trading

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"statarb/internal/models"
)

func newTestCoordinator(p Provider) *Coordinator {
	logger := zap.NewNop()
	return NewCoordinator(
		&fixedProviderSource{provider: p},
		NewPositionSizeService(logger),
		NewAdaptiveAmountService(logger),
		NewMinLotValidator(decimal.NewFromInt(3), logger),
		logger,
	)
}

// Провайдер с балансом и ценами, достаточными для прохождения гейтов
func newReadyProvider() *mockProvider {
	p := newMockProvider()
	p.portfolio = &models.Portfolio{AvailableBalance: decimal.NewFromInt(1000)}
	p.prices["ADA-USDT-SWAP"] = decimal.NewFromInt(10)
	p.prices["SOL-USDT-SWAP"] = decimal.NewFromInt(20)
	return p
}

func openPosition(id string, pairID int64, side models.PositionSide, entry, size, allocated int64) *models.Position {
	return &models.Position{
		PositionID:      id,
		PairID:          pairID,
		Symbol:          map[models.PositionSide]string{models.SideLong: "ADA-USDT-SWAP", models.SideShort: "SOL-USDT-SWAP"}[side],
		Side:            side,
		Size:            decimal.NewFromInt(size),
		EntryPrice:      decimal.NewFromInt(entry),
		CurrentPrice:    decimal.NewFromInt(entry),
		Leverage:        decimal.NewFromInt(1),
		AllocatedAmount: decimal.NewFromInt(allocated),
		Status:          models.StatusOpen,
	}
}

func TestOpenArbitragePairSuccess(t *testing.T) {
	provider := newReadyProvider()
	coord := newTestCoordinator(provider)

	info := coord.OpenArbitragePair(context.Background(), testPair(), testSettings(100, 100))
	if !info.Success {
		t.Fatalf("open failed: %s", info.ErrorMessage)
	}
	if info.LongResult == nil || info.ShortResult == nil {
		t.Fatal("expected both leg results")
	}
	if !info.BalanceBefore.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("balance before = %s, want 1000", info.BalanceBefore)
	}

	ids, ok := coord.Registry().Get(1)
	if !ok {
		t.Fatal("pair not recorded in registry")
	}
	if ids.LongPositionID != "long-1" || ids.ShortPositionID != "short-1" {
		t.Errorf("registry entry = %+v", ids)
	}
}

func TestOpenArbitragePairLongLegFailure(t *testing.T) {
	provider := newReadyProvider()
	provider.openLongResult = models.TradeFailure(models.OpOpenLong, "ADA-USDT-SWAP", "order rejected")
	coord := newTestCoordinator(provider)

	failuresBefore := testutil.ToFloat64(PairTradesTotal.WithLabelValues("open", "failure"))

	info := coord.OpenArbitragePair(context.Background(), testPair(), testSettings(100, 100))
	if info.Success {
		t.Fatal("expected failure")
	}
	// Исход считается в серию result="failure"
	failuresAfter := testutil.ToFloat64(PairTradesTotal.WithLabelValues("open", "failure"))
	if failuresAfter != failuresBefore+1 {
		t.Errorf("failure counter = %v, want %v", failuresAfter, failuresBefore+1)
	}
	if provider.openShortCalls != 0 {
		t.Error("short leg must not be attempted after long failure")
	}
	if len(provider.closeCalls) != 0 {
		t.Errorf("no compensating close expected, got %v", provider.closeCalls)
	}
	if _, ok := coord.Registry().Get(1); ok {
		t.Error("registry must stay empty after long failure")
	}
}

func TestOpenArbitragePairShortLegFailureRollsBackLong(t *testing.T) {
	provider := newReadyProvider()
	provider.openShortResult = models.TradeFailure(models.OpOpenShort, "SOL-USDT-SWAP", "insufficient margin")
	coord := newTestCoordinator(provider)

	info := coord.OpenArbitragePair(context.Background(), testPair(), testSettings(100, 100))
	if info.Success {
		t.Fatal("expected failure")
	}
	if len(provider.closeCalls) != 1 {
		t.Fatalf("expected exactly one compensating close, got %d", len(provider.closeCalls))
	}
	if provider.closeCalls[0] != "long-1" {
		t.Errorf("compensating close targeted %s, want long-1", provider.closeCalls[0])
	}
	if _, ok := coord.Registry().Get(1); ok {
		t.Error("registry must stay empty after rollback")
	}
}

func TestOpenArbitragePairRollbackFailureStillFails(t *testing.T) {
	provider := newReadyProvider()
	provider.openShortResult = models.TradeFailure(models.OpOpenShort, "SOL-USDT-SWAP", "insufficient margin")
	provider.closeResults["long-1"] = models.TradeFailure(models.OpClosePosition, "ADA-USDT-SWAP", "exchange down")
	coord := newTestCoordinator(provider)

	info := coord.OpenArbitragePair(context.Background(), testPair(), testSettings(100, 100))
	if info.Success {
		t.Fatal("expected failure regardless of rollback outcome")
	}
	if len(provider.closeCalls) != 1 {
		t.Fatalf("rollback must not be retried, got %d close calls", len(provider.closeCalls))
	}
}

func TestOpenArbitragePairAdmissionGateIsPure(t *testing.T) {
	provider := newMockProvider() // nil portfolio -> нулевой размер
	coord := newTestCoordinator(provider)

	info := coord.OpenArbitragePair(context.Background(), testPair(), testSettings(100, 100))
	if info.Success {
		t.Fatal("expected rejection")
	}
	if provider.openLongCalls != 0 || provider.openShortCalls != 0 || len(provider.closeCalls) != 0 {
		t.Error("admission rejection must not touch the provider")
	}
}

func TestOpenArbitragePairAlreadyOpen(t *testing.T) {
	provider := newReadyProvider()
	coord := newTestCoordinator(provider)
	coord.Registry().Put(1, "long-1", "short-1")

	info := coord.OpenArbitragePair(context.Background(), testPair(), testSettings(100, 100))
	if info.Success {
		t.Fatal("expected rejection for a pair that is already open")
	}
	if provider.openLongCalls != 0 {
		t.Error("no legs must be opened for an already tracked pair")
	}
}

func TestCloseArbitragePairIdempotent(t *testing.T) {
	provider := newReadyProvider()
	coord := newTestCoordinator(provider)

	info := coord.CloseArbitragePair(context.Background(), 42)
	if !info.Success {
		t.Fatal("close of untracked pair must succeed")
	}
	if !info.TotalPnL.IsZero() {
		t.Errorf("total pnl = %s, want 0", info.TotalPnL)
	}
	if len(provider.closeCalls) != 0 {
		t.Errorf("no provider calls expected, got %v", provider.closeCalls)
	}
}

func TestCloseArbitragePairAggregatesPnL(t *testing.T) {
	provider := newReadyProvider()
	coord := newTestCoordinator(provider)
	coord.Registry().Put(1, "long-1", "short-1")

	longClose := models.TradeSuccess("long-1", models.OpClosePosition, "ADA-USDT-SWAP", decimal.NewFromInt(10), decimal.NewFromInt(11), decimal.NewFromInt(1))
	longClose.PnL = decimal.NewFromInt(10)
	shortClose := models.TradeSuccess("short-1", models.OpClosePosition, "SOL-USDT-SWAP", decimal.NewFromInt(5), decimal.NewFromInt(19), decimal.NewFromInt(2))
	shortClose.PnL = decimal.NewFromInt(-3)
	provider.closeResults["long-1"] = longClose
	provider.closeResults["short-1"] = shortClose

	info := coord.CloseArbitragePair(context.Background(), 1)
	if !info.Success {
		t.Fatalf("close failed: %s", info.ErrorMessage)
	}
	if !info.TotalPnL.Equal(decimal.NewFromInt(7)) {
		t.Errorf("total pnl = %s, want 7", info.TotalPnL)
	}
	if !info.TotalFees.Equal(decimal.NewFromInt(3)) {
		t.Errorf("total fees = %s, want 3", info.TotalFees)
	}
	if len(provider.closeCalls) != 2 || provider.closeCalls[0] != "long-1" {
		t.Errorf("legs must close sequentially long first, got %v", provider.closeCalls)
	}
	if _, ok := coord.Registry().Get(1); ok {
		t.Error("registry entry must be removed after dual success")
	}
}

func TestCloseArbitragePairPartialFailureKeepsRegistry(t *testing.T) {
	provider := newReadyProvider()
	coord := newTestCoordinator(provider)
	coord.Registry().Put(1, "long-1", "short-1")

	longClose := models.TradeSuccess("long-1", models.OpClosePosition, "ADA-USDT-SWAP", decimal.NewFromInt(10), decimal.NewFromInt(11), decimal.NewFromInt(1))
	longClose.PnL = decimal.NewFromInt(10)
	provider.closeResults["long-1"] = longClose
	provider.closeResults["short-1"] = models.TradeFailure(models.OpClosePosition, "SOL-USDT-SWAP", "exchange down")

	info := coord.CloseArbitragePair(context.Background(), 1)
	if info.Success {
		t.Fatal("expected failure on partial close")
	}
	// PnL успешной ноги все равно агрегируется
	if !info.TotalPnL.Equal(decimal.NewFromInt(10)) {
		t.Errorf("total pnl = %s, want 10", info.TotalPnL)
	}
	if _, ok := coord.Registry().Get(1); !ok {
		t.Error("registry entry must survive a partial close for retry")
	}
}

func TestGetOpenPositionsInfoBothOpen(t *testing.T) {
	provider := newReadyProvider()
	provider.prices["ADA-USDT-SWAP"] = decimal.NewFromInt(11)
	provider.prices["SOL-USDT-SWAP"] = decimal.NewFromInt(19)
	provider.positions["long-1"] = openPosition("long-1", 1, models.SideLong, 10, 10, 100)
	provider.positions["short-1"] = openPosition("short-1", 1, models.SideShort, 20, 5, 100)

	coord := newTestCoordinator(provider)
	coord.Registry().Put(1, "long-1", "short-1")

	info := coord.GetOpenPositionsInfo(context.Background(), 1)
	if info.PositionsClosed {
		t.Fatal("pair must be reported open")
	}
	// long: (11-10)*10 = 10, short: (20-19)*5 = 5
	if !info.TotalPnL.Equal(decimal.NewFromInt(15)) {
		t.Errorf("total pnl = %s, want 15", info.TotalPnL)
	}
	// 15 / 200 * 100
	if !info.TotalPnLPercent.Equal(decimal.RequireFromString("7.5")) {
		t.Errorf("total pnl percent = %s, want 7.5", info.TotalPnLPercent)
	}
}

func TestGetOpenPositionsInfoPartiallyClosed(t *testing.T) {
	provider := newReadyProvider()
	long := openPosition("long-1", 1, models.SideLong, 10, 10, 100)
	short := openPosition("short-1", 1, models.SideShort, 20, 5, 100)
	short.Status = models.StatusClosed
	short.RealizedPnL = decimal.NewFromInt(5)
	provider.positions["long-1"] = long
	provider.positions["short-1"] = short

	coord := newTestCoordinator(provider)
	coord.Registry().Put(1, "long-1", "short-1")

	info := coord.GetOpenPositionsInfo(context.Background(), 1)
	if info.PositionsClosed {
		t.Error("partially closed pair must not be reported closed")
	}
	if info.LongPosition == nil || info.ShortPosition == nil {
		t.Error("both position objects must be carried in the aggregate")
	}
	if !info.TotalPnL.IsZero() {
		t.Errorf("partial aggregate pnl = %s, want 0", info.TotalPnL)
	}
}

func TestVerifyPositionsClosedRemovesRegistryEntry(t *testing.T) {
	provider := newReadyProvider()
	long := openPosition("long-1", 1, models.SideLong, 10, 10, 100)
	long.Status = models.StatusClosed
	long.RealizedPnL = decimal.NewFromInt(12)
	short := openPosition("short-1", 1, models.SideShort, 20, 5, 100)
	short.Status = models.StatusClosed
	short.RealizedPnL = decimal.NewFromInt(-2)
	provider.positions["long-1"] = long
	provider.positions["short-1"] = short

	coord := newTestCoordinator(provider)
	coord.Registry().Put(1, "long-1", "short-1")

	info := coord.VerifyPositionsClosed(context.Background(), 1)
	if !info.PositionsClosed {
		t.Fatal("both legs closed, pair must be reported closed")
	}
	if !info.TotalPnL.Equal(decimal.NewFromInt(10)) {
		t.Errorf("realized pnl = %s, want 10", info.TotalPnL)
	}
	if _, ok := coord.Registry().Get(1); ok {
		t.Error("registry entry must be removed")
	}
}

func TestVerifyPositionsClosedPartialKeepsEntry(t *testing.T) {
	provider := newReadyProvider()
	long := openPosition("long-1", 1, models.SideLong, 10, 10, 100)
	short := openPosition("short-1", 1, models.SideShort, 20, 5, 100)
	short.Status = models.StatusClosed
	provider.positions["long-1"] = long
	provider.positions["short-1"] = short

	coord := newTestCoordinator(provider)
	coord.Registry().Put(1, "long-1", "short-1")

	info := coord.VerifyPositionsClosed(context.Background(), 1)
	if info.PositionsClosed {
		t.Fatal("pair with an open leg must be reported open")
	}
	if !info.TotalPnL.IsZero() {
		t.Errorf("partial verify pnl = %s, want 0", info.TotalPnL)
	}
	if _, ok := coord.Registry().Get(1); !ok {
		t.Error("registry entry must survive partial verification")
	}
}

func TestRestoreOpenPositions(t *testing.T) {
	provider := newReadyProvider()
	provider.openList = []*models.Position{
		openPosition("long-1", 1, models.SideLong, 10, 10, 100),
		openPosition("short-1", 1, models.SideShort, 20, 5, 100),
		// Пара 2 осталась с одной ногой и восстановлению не подлежит
		openPosition("long-2", 2, models.SideLong, 10, 10, 100),
	}

	coord := newTestCoordinator(provider)
	if err := coord.RestoreOpenPositions(context.Background()); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	if _, ok := coord.Registry().Get(1); !ok {
		t.Error("pair 1 must be restored")
	}
	if _, ok := coord.Registry().Get(2); ok {
		t.Error("single-leg pair 2 must not be restored")
	}
	if coord.Registry().Count() != 1 {
		t.Errorf("registry count = %d, want 1", coord.Registry().Count())
	}
}
