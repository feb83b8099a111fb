package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"statarb/internal/models"
	"statarb/internal/service"
)

// PairHandler отвечает за управление торговыми парами
//
// Endpoints:
// - POST /api/v1/pairs        - добавление пары
// - GET /api/v1/pairs         - список пар
// - GET /api/v1/pairs/{id}    - одна пара
// - DELETE /api/v1/pairs/{id} - удаление пары
type PairHandler struct {
	pairService *service.PairService
}

// NewPairHandler создает новый PairHandler
func NewPairHandler(pairService *service.PairService) *PairHandler {
	return &PairHandler{pairService: pairService}
}

// CreatePairRequest - запрос на создание пары
type CreatePairRequest struct {
	PairName    string `json:"pair_name,omitempty"`
	LongTicker  string `json:"long_ticker"`
	ShortTicker string `json:"short_ticker"`
}

// CreatePair добавляет новую торговую пару
// POST /api/v1/pairs
func (h *PairHandler) CreatePair(w http.ResponseWriter, r *http.Request) {
	var req CreatePairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pair := &models.PairData{
		PairName:    req.PairName,
		LongTicker:  req.LongTicker,
		ShortTicker: req.ShortTicker,
	}

	if err := h.pairService.CreatePair(pair); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTicker), errors.Is(err, service.ErrSameTickers):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPairAlreadyExists), errors.Is(err, service.ErrMaxPairsReached):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusCreated, SuccessResponse{Message: "pair created", Data: pair})
}

// GetPairs возвращает список всех пар
// GET /api/v1/pairs
func (h *PairHandler) GetPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.pairService.GetAllPairs()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Data: pairs})
}

// GetPair возвращает одну пару
// GET /api/v1/pairs/{id}
func (h *PairHandler) GetPair(w http.ResponseWriter, r *http.Request) {
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
	respondJSON(w, http.StatusOK, SuccessResponse{Data: pair})
}

// DeletePair удаляет пару
// DELETE /api/v1/pairs/{id}
func (h *PairHandler) DeletePair(w http.ResponseWriter, r *http.Request) {
	id, err := pairID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pair id")
		return
	}

	if err := h.pairService.DeletePair(id); err != nil {
		switch {
		case errors.Is(err, service.ErrPairNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrPairHasOpenPosition):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Message: "pair deleted"})
}

func pairID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}
