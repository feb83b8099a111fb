package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"statarb/internal/models"
	"statarb/internal/service"
)

type fakeCoordinator struct {
	openInfo   *models.ArbitragePairTradeInfo
	closeInfo  *models.ArbitragePairTradeInfo
	statusInfo *models.PositionInfo

	openedPairs []int64
	closedPairs []int64
}

func (c *fakeCoordinator) OpenArbitragePair(ctx context.Context, pair *models.PairData, settings models.Settings) *models.ArbitragePairTradeInfo {
	c.openedPairs = append(c.openedPairs, pair.ID)
	return c.openInfo
}

func (c *fakeCoordinator) CloseArbitragePair(ctx context.Context, pairID int64) *models.ArbitragePairTradeInfo {
	c.closedPairs = append(c.closedPairs, pairID)
	return c.closeInfo
}

func (c *fakeCoordinator) GetPositionInfo(ctx context.Context, pairID int64) *models.PositionInfo {
	return c.statusInfo
}

func (c *fakeCoordinator) VerifyPositionsClosed(ctx context.Context, pairID int64) *models.PositionInfo {
	return c.statusInfo
}

type fakePairGetter struct {
	pair *models.PairData
	err  error
}

func (g *fakePairGetter) GetPair(id int64) (*models.PairData, error) {
	return g.pair, g.err
}

func newTradingRouter(coordinator *fakeCoordinator, pairs *fakePairGetter) *mux.Router {
	h := NewTradingHandler(coordinator, pairs, models.Settings{
		Leverage:           decimal.NewFromInt(1),
		MaxLongMarginSize:  decimal.NewFromInt(100),
		MaxShortMarginSize: decimal.NewFromInt(100),
	})

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/pairs/{id}/open", h.OpenPair).Methods("POST")
	router.HandleFunc("/api/v1/pairs/{id}/close", h.ClosePair).Methods("POST")
	router.HandleFunc("/api/v1/pairs/{id}/status", h.PairStatus).Methods("GET")
	return router
}

func TestOpenPairSuccess(t *testing.T) {
	coordinator := &fakeCoordinator{
		openInfo: &models.ArbitragePairTradeInfo{Success: true},
	}
	pairs := &fakePairGetter{pair: &models.PairData{ID: 5, LongTicker: "ADA-USDT-SWAP", ShortTicker: "SOL-USDT-SWAP"}}
	router := newTradingRouter(coordinator, pairs)

	req := httptest.NewRequest("POST", "/api/v1/pairs/5/open", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(coordinator.openedPairs) != 1 || coordinator.openedPairs[0] != 5 {
		t.Errorf("opened pairs = %v, want [5]", coordinator.openedPairs)
	}
}

func TestOpenPairRejection(t *testing.T) {
	coordinator := &fakeCoordinator{
		openInfo: &models.ArbitragePairTradeInfo{Success: false, ErrorMessage: "minimum lot requirements not met"},
	}
	pairs := &fakePairGetter{pair: &models.PairData{ID: 5}}
	router := newTradingRouter(coordinator, pairs)

	req := httptest.NewRequest("POST", "/api/v1/pairs/5/open", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var info models.ArbitragePairTradeInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.ErrorMessage == "" {
		t.Error("error message must be carried to the client")
	}
}

func TestOpenPairNotFound(t *testing.T) {
	coordinator := &fakeCoordinator{}
	pairs := &fakePairGetter{err: service.ErrPairNotFound}
	router := newTradingRouter(coordinator, pairs)

	req := httptest.NewRequest("POST", "/api/v1/pairs/99/open", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if len(coordinator.openedPairs) != 0 {
		t.Error("coordinator must not be called for unknown pair")
	}
}

func TestOpenPairInvalidID(t *testing.T) {
	router := newTradingRouter(&fakeCoordinator{}, &fakePairGetter{})

	req := httptest.NewRequest("POST", "/api/v1/pairs/abc/open", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestClosePair(t *testing.T) {
	coordinator := &fakeCoordinator{
		closeInfo: &models.ArbitragePairTradeInfo{
			Success:  true,
			TotalPnL: decimal.NewFromInt(7),
		},
	}
	router := newTradingRouter(coordinator, &fakePairGetter{})

	req := httptest.NewRequest("POST", "/api/v1/pairs/5/close", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(coordinator.closedPairs) != 1 || coordinator.closedPairs[0] != 5 {
		t.Errorf("closed pairs = %v, want [5]", coordinator.closedPairs)
	}
}

func TestPairStatus(t *testing.T) {
	coordinator := &fakeCoordinator{
		statusInfo: &models.PositionInfo{PositionsClosed: true},
	}
	router := newTradingRouter(coordinator, &fakePairGetter{})

	req := httptest.NewRequest("GET", "/api/v1/pairs/5/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var info models.PositionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if !info.PositionsClosed {
		t.Error("positions_closed must round-trip")
	}
}
