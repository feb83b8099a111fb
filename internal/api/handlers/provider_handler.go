package handlers

import (
	"encoding/json"
	"net/http"

	"statarb/internal/trading"
)

// ProviderSwitcher - операции фабрики провайдеров, нужные HTTP слою
type ProviderSwitcher interface {
	CurrentType() trading.ProviderType
	SwitchTo(providerType trading.ProviderType) (*trading.SwitchResult, error)
	SafeSwitchTo(providerType trading.ProviderType) *trading.SwitchResult
}

// ProviderHandler управляет активным торговым провайдером
//
// Endpoints:
// - GET /api/v1/provider  - текущий провайдер
// - POST /api/v1/provider - переключение провайдера
type ProviderHandler struct {
	factory ProviderSwitcher
}

// NewProviderHandler создает ProviderHandler
func NewProviderHandler(factory ProviderSwitcher) *ProviderHandler {
	return &ProviderHandler{factory: factory}
}

// SwitchProviderRequest - запрос на переключение провайдера
type SwitchProviderRequest struct {
	Provider string `json:"provider"` // VIRTUAL, OKX
	Safe     bool   `json:"safe"`     // при неудаче откатиться на VIRTUAL
}

// GetProvider возвращает тип активного провайдера
// GET /api/v1/provider
func (h *ProviderHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SuccessResponse{
		Data: map[string]string{"provider": string(h.factory.CurrentType())},
	})
}

// SwitchProvider переключает активный провайдер
// POST /api/v1/provider
func (h *ProviderHandler) SwitchProvider(w http.ResponseWriter, r *http.Request) {
	var req SwitchProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target := trading.ProviderType(req.Provider)

	if req.Safe {
		result := h.factory.SafeSwitchTo(target)
		respondJSON(w, http.StatusOK, result)
		return
	}

	result, err := h.factory.SwitchTo(target)
	if err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
