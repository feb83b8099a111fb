// Package api собирает HTTP поверхность движка: маршруты, middleware
// и обработчики.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"statarb/internal/api/handlers"
	"statarb/internal/api/middleware"
	"statarb/internal/models"
	"statarb/internal/service"
	"statarb/internal/trading"
	"statarb/internal/websocket"
)

// Dependencies - зависимости HTTP слоя
type Dependencies struct {
	PairService    *service.PairService
	AccountService *service.AccountService
	Coordinator    *trading.Coordinator
	Factory        *trading.Factory
	Settings       models.Settings
	Hub            *websocket.Hub

	// bcrypt-хэш управляющего токена; пустой отключает auth
	APITokenHash string

	Logger *zap.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения.
//
// Структура:
//
//	/api/v1/
//	  ├── /portfolio            GET  - снимок леджера
//	  ├── /positions            GET  - открытые позиции
//	  ├── /pairs                GET/POST - CRUD пар
//	  ├── /pairs/{id}           GET/DELETE
//	  ├── /pairs/{id}/open      POST - открыть обе ноги
//	  ├── /pairs/{id}/close     POST - закрыть обе ноги
//	  ├── /pairs/{id}/status    GET  - статус позиций
//	  ├── /pairs/{id}/verify    POST - сверка закрытия
//	  ├── /provider             GET/POST - активный провайдер
//	  └── /accounts             POST, /accounts/{exchange} GET/DELETE
//	/ws       - WebSocket поток обновлений
//	/metrics  - Prometheus
//	/health   - liveness
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS)

	pairHandler := handlers.NewPairHandler(deps.PairService)
	tradingHandler := handlers.NewTradingHandler(deps.Coordinator, deps.PairService, deps.Settings)
	portfolioHandler := handlers.NewPortfolioHandler(deps.Factory)
	providerHandler := handlers.NewProviderHandler(deps.Factory)
	accountHandler := handlers.NewAccountHandler(deps.AccountService)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.BearerAuth(deps.APITokenHash, deps.Logger))

	api.HandleFunc("/portfolio", portfolioHandler.GetPortfolio).Methods("GET")
	api.HandleFunc("/positions", portfolioHandler.GetPositions).Methods("GET")

	api.HandleFunc("/pairs", pairHandler.GetPairs).Methods("GET")
	api.HandleFunc("/pairs", pairHandler.CreatePair).Methods("POST")
	api.HandleFunc("/pairs/{id}", pairHandler.GetPair).Methods("GET")
	api.HandleFunc("/pairs/{id}", pairHandler.DeletePair).Methods("DELETE")

	api.HandleFunc("/pairs/{id}/open", tradingHandler.OpenPair).Methods("POST")
	api.HandleFunc("/pairs/{id}/close", tradingHandler.ClosePair).Methods("POST")
	api.HandleFunc("/pairs/{id}/status", tradingHandler.PairStatus).Methods("GET")
	api.HandleFunc("/pairs/{id}/verify", tradingHandler.VerifyPair).Methods("POST")

	api.HandleFunc("/provider", providerHandler.GetProvider).Methods("GET")
	api.HandleFunc("/provider", providerHandler.SwitchProvider).Methods("POST")

	api.HandleFunc("/accounts", accountHandler.SaveCredentials).Methods("POST")
	api.HandleFunc("/accounts/{exchange}", accountHandler.GetCredentials).Methods("GET")
	api.HandleFunc("/accounts/{exchange}", accountHandler.DeleteCredentials).Methods("DELETE")

	if deps.Hub != nil {
		router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		})
	}

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
