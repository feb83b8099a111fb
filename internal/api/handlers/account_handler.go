package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"statarb/internal/service"
)

// AccountHandler управляет биржевыми учетными данными
//
// Endpoints:
// - POST /api/v1/accounts             - сохранить ключи API
// - GET /api/v1/accounts/{exchange}   - маскированные ключи
// - DELETE /api/v1/accounts/{exchange} - удалить ключи
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler создает AccountHandler
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// SaveCredentialsRequest - запрос на сохранение ключей
type SaveCredentialsRequest struct {
	Exchange   string `json:"exchange"`
	APIKey     string `json:"api_key"`
	SecretKey  string `json:"secret_key"`
	Passphrase string `json:"passphrase"`
}

// SaveCredentials проверяет и сохраняет ключи API
// POST /api/v1/accounts
func (h *AccountHandler) SaveCredentials(w http.ResponseWriter, r *http.Request) {
	var req SaveCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.accountService.SaveCredentials(req.Exchange, req.APIKey, req.SecretKey, req.Passphrase)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrConnectionFailed):
			respondError(w, http.StatusBadGateway, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Message: "credentials saved"})
}

// GetCredentials возвращает маскированные учетные данные
// GET /api/v1/accounts/{exchange}
func (h *AccountHandler) GetCredentials(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountService.GetMaskedCredentials(mux.Vars(r)["exchange"])
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Data: account})
}

// DeleteCredentials удаляет учетные данные биржи
// DELETE /api/v1/accounts/{exchange}
func (h *AccountHandler) DeleteCredentials(w http.ResponseWriter, r *http.Request) {
	if err := h.accountService.DeleteCredentials(mux.Vars(r)["exchange"]); err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Message: "credentials deleted"})
}
