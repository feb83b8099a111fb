package handlers

import (
	"net/http"

	"statarb/internal/trading"
)

// ProviderSource отдает активный торговый провайдер
type ProviderSource interface {
	Current() trading.Provider
}

// PortfolioHandler отдает состояние леджера и открытые позиции
//
// Endpoints:
// - GET /api/v1/portfolio - снимок леджера активного провайдера
// - GET /api/v1/positions - открытые позиции
type PortfolioHandler struct {
	providers ProviderSource
}

// NewPortfolioHandler создает PortfolioHandler
func NewPortfolioHandler(providers ProviderSource) *PortfolioHandler {
	return &PortfolioHandler{providers: providers}
}

// GetPortfolio возвращает снимок леджера
// GET /api/v1/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := h.providers.Current().GetPortfolio(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Data: portfolio})
}

// GetPositions возвращает открытые позиции
// GET /api/v1/positions
func (h *PortfolioHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.providers.Current().GetOpenPositions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Data: positions})
}
