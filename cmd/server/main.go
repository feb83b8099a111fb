package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"statarb/internal/api"
	"statarb/internal/config"
	"statarb/internal/exchange"
	"statarb/internal/models"
	"statarb/internal/portfolio"
	"statarb/internal/repository"
	"statarb/internal/service"
	"statarb/internal/trading"
	"statarb/internal/websocket"
	"statarb/pkg/utils"
)

// Интервал пересчета цен и нереализованного PnL открытых позиций
const positionRefreshInterval = 5 * time.Second

func main() {
	// .env опционален, переменные окружения имеют приоритет
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := repository.InitSchema(db, cfg.Database.Driver); err != nil {
		logger.Fatal("init database schema", zap.Error(err))
	}
	logger.Info("database ready",
		zap.String("driver", cfg.Database.Driver),
		zap.String("dsn", cfg.Database.DSNWithoutPassword()),
	)

	pairRepo := repository.NewPairRepository(db)
	accountRepo := repository.NewAccountRepository(db, cfg.Security.EncryptionKey)
	portfolioRepo := repository.NewPortfolioRepository(db)
	positionRepo := repository.NewPositionRepository(db)

	// Биржевой клиент OKX. До подключения учетных данных доступны
	// только публичные endpoints (тикеры, инструменты).
	okxClient := exchange.NewOkxClient(cfg.Exchange.RESTBaseURL, cfg.Exchange.Simulated)
	connectOkx(okxClient, accountRepo, cfg, logger)

	// Леджеры: виртуальный живет в БД, OKX читает баланс биржи
	virtualLedger := portfolio.NewVirtualManager(portfolioRepo, cfg.Trading.InitialVirtualBalance, logger)
	okxLedger := portfolio.NewOkxManager(okxClient, cfg.Exchange.BalanceCacheTTL, logger)

	virtualProvider := trading.NewVirtualProvider(virtualLedger, positionRepo, okxClient, logger)
	okxProvider := trading.NewOkxProvider(okxClient, okxLedger, positionRepo, logger)

	factory := trading.NewFactory(virtualProvider, logger)
	factory.Register(okxProvider)
	if cfg.Trading.Provider == "okx" {
		result := factory.SafeSwitchTo(trading.ProviderOkx)
		if !result.Success {
			logger.Warn("okx provider unavailable at startup",
				zap.String("error_type", result.ErrorType),
				zap.String("message", result.Message),
			)
		}
	}

	coordinator := trading.NewCoordinator(
		factory,
		trading.NewPositionSizeService(logger),
		trading.NewAdaptiveAmountService(logger),
		trading.NewMinLotValidator(cfg.Trading.MaxLotExcessRatio, logger),
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coordinator.RestoreOpenPositions(ctx); err != nil {
		logger.Warn("restore open positions", zap.Error(err))
	}

	pairService := service.NewPairService(pairRepo, coordinator.Registry())
	accountService := service.NewAccountService(accountRepo, okxClient, logger)

	hub := websocket.NewHub(logger)
	go hub.Run()

	priceStream := startPriceStream(cfg, pairRepo, hub, logger)
	if priceStream != nil {
		defer priceStream.Close()
	}

	go refreshLoop(ctx, factory, hub, logger)

	settings := models.Settings{
		Leverage:              cfg.Trading.Leverage,
		MaxLongMarginSize:     cfg.Trading.MaxLongMarginSize,
		MaxShortMarginSize:    cfg.Trading.MaxShortMarginSize,
		InitialVirtualBalance: cfg.Trading.InitialVirtualBalance,
	}

	router := api.SetupRoutes(&api.Dependencies{
		PairService:    pairService,
		AccountService: accountService,
		Coordinator:    coordinator,
		Factory:        factory,
		Settings:       settings,
		Hub:            hub,
		APITokenHash:   cfg.Security.APITokenHash,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		var err error
		if cfg.Server.UseHTTPS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// initDatabase открывает подключение к БД и настраивает пул соединений
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Database.Driver == "sqlite" {
		// Один writer: sqlite плохо переносит конкурентную запись
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// connectOkx подключает клиента OKX: сначала переменные окружения,
// затем сохраненные учетные данные из БД. Отсутствие ключей не фатально,
// виртуальный провайдер работает без них.
func connectOkx(client *exchange.OkxClient, accounts *repository.AccountRepository, cfg *config.Config, logger *zap.Logger) {
	apiKey, secretKey, passphrase := cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Exchange.Passphrase

	if apiKey == "" {
		acc, err := accounts.GetByExchange("okx")
		if err == nil {
			apiKey, secretKey, passphrase = acc.APIKey, acc.SecretKey, acc.Passphrase
		}
	}

	if apiKey == "" {
		logger.Info("okx credentials not configured, trading via OKX disabled")
		return
	}

	if err := client.Connect(apiKey, secretKey, passphrase); err != nil {
		logger.Warn("okx connect failed", zap.Error(err))
		return
	}
	logger.Info("okx client connected", zap.Bool("simulated", cfg.Exchange.Simulated))
}

// startPriceStream подписывает публичный поток цен на инструменты всех
// пар и транслирует тики в WebSocket hub. Ошибки не фатальны: REST
// тикеры остаются доступны.
func startPriceStream(cfg *config.Config, pairs *repository.PairRepository, hub *websocket.Hub, logger *zap.Logger) *exchange.PriceStream {
	wsCfg := exchange.DefaultWSReconnectConfig()
	wsCfg.InitialDelay = cfg.Exchange.WSReconnectDelay
	wsCfg.PingInterval = cfg.Exchange.WSPingInterval
	wsCfg.PongTimeout = cfg.Exchange.WSReadTimeout

	stream := exchange.NewPriceStream(cfg.Exchange.WSPublicURL, wsCfg, logger)

	if err := stream.Start(); err != nil {
		logger.Warn("price stream unavailable", zap.Error(err))
		return nil
	}

	allPairs, err := pairs.GetAll()
	if err != nil {
		logger.Warn("load pairs for price stream", zap.Error(err))
		return stream
	}

	instruments := make(map[string]struct{})
	for _, pair := range allPairs {
		instruments[pair.LongTicker] = struct{}{}
		instruments[pair.ShortTicker] = struct{}{}
	}
	for instID := range instruments {
		if err := stream.Subscribe(instID, func(ticker *exchange.Ticker) {
			hub.BroadcastTicker(ticker.InstID, ticker.Last)
		}); err != nil {
			logger.Warn("subscribe ticker", zap.String("inst_id", instID), zap.Error(err))
		}
	}

	logger.Info("price stream started", zap.Int("instruments", len(instruments)))
	return stream
}

// refreshLoop периодически пересчитывает открытые позиции активного
// провайдера и рассылает снимки леджера подключенным клиентам
func refreshLoop(ctx context.Context, factory *trading.Factory, hub *websocket.Hub, logger *zap.Logger) {
	ticker := time.NewTicker(positionRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			provider := factory.Current()

			if err := provider.UpdateAllPositions(ctx); err != nil {
				logger.Warn("update positions", zap.Error(err))
				continue
			}

			if snapshot, err := provider.GetPortfolio(ctx); err == nil {
				hub.BroadcastPortfolioUpdate(string(provider.Type()), snapshot)
			}
			if positions, err := provider.GetOpenPositions(ctx); err == nil && len(positions) > 0 {
				hub.BroadcastPositionUpdate(positions)
			}
		}
	}
}
