package handlers

import (
	"context"
	"errors"
	"net/http"

	"statarb/internal/models"
	"statarb/internal/service"
)

// PairCoordinator - операции координатора, нужные HTTP слою
type PairCoordinator interface {
	OpenArbitragePair(ctx context.Context, pair *models.PairData, settings models.Settings) *models.ArbitragePairTradeInfo
	CloseArbitragePair(ctx context.Context, pairID int64) *models.ArbitragePairTradeInfo
	GetPositionInfo(ctx context.Context, pairID int64) *models.PositionInfo
	VerifyPositionsClosed(ctx context.Context, pairID int64) *models.PositionInfo
}

// PairGetter возвращает пару по идентификатору
type PairGetter interface {
	GetPair(id int64) (*models.PairData, error)
}

// TradingHandler запускает протоколы открытия и закрытия пар
//
// Endpoints:
// - POST /api/v1/pairs/{id}/open   - открыть обе ноги пары
// - POST /api/v1/pairs/{id}/close  - закрыть обе ноги пары
// - GET /api/v1/pairs/{id}/status  - статус позиций пары
// - POST /api/v1/pairs/{id}/verify - сверка закрытия ног
type TradingHandler struct {
	coordinator PairCoordinator
	pairService PairGetter
	settings    models.Settings
}

// NewTradingHandler создает TradingHandler с торговыми настройками
func NewTradingHandler(coordinator PairCoordinator, pairService PairGetter, settings models.Settings) *TradingHandler {
	return &TradingHandler{
		coordinator: coordinator,
		pairService: pairService,
		settings:    settings,
	}
}

// OpenPair открывает арбитражную пару
// POST /api/v1/pairs/{id}/open
func (h *TradingHandler) OpenPair(w http.ResponseWriter, r *http.Request) {
	id, err := pairID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pair id")
		return
	}

	pair, err := h.pairService.GetPair(id)
	if err != nil {
		if errors.Is(err, service.ErrPairNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	info := h.coordinator.OpenArbitragePair(r.Context(), pair, h.settings)
	if !info.Success {
		respondJSON(w, http.StatusUnprocessableEntity, info)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// ClosePair закрывает арбитражную пару
// POST /api/v1/pairs/{id}/close
func (h *TradingHandler) ClosePair(w http.ResponseWriter, r *http.Request) {
	id, err := pairID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pair id")
		return
	}

	info := h.coordinator.CloseArbitragePair(r.Context(), id)
	if !info.Success {
		respondJSON(w, http.StatusUnprocessableEntity, info)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// PairStatus возвращает статус позиций пары
// GET /api/v1/pairs/{id}/status
func (h *TradingHandler) PairStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pairID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pair id")
		return
	}

	respondJSON(w, http.StatusOK, h.coordinator.GetPositionInfo(r.Context(), id))
}

// VerifyPair сверяет закрытие обеих ног пары
// POST /api/v1/pairs/{id}/verify
func (h *TradingHandler) VerifyPair(w http.ResponseWriter, r *http.Request) {
	id, err := pairID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pair id")
		return
	}

	respondJSON(w, http.StatusOK, h.coordinator.VerifyPositionsClosed(r.Context(), id))
}
