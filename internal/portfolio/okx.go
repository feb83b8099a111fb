package portfolio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"statarb/internal/exchange"
	"statarb/internal/models"
)

// settlementCurrency - валюта расчетов бессрочных контрактов
const settlementCurrency = "USDT"

// balanceFetcher - нужная менеджеру часть клиента OKX
type balanceFetcher interface {
	GetAccountBalance(ctx context.Context) (*exchange.AccountBalance, error)
}

// OkxManager - read-only зеркало балансов OKX.
//
// Резервирование на бирже выполняет сама биржа при размещении ордера,
// поэтому ReserveFunds сводится к проверке достаточности средств, а
// ReleaseFunds - к no-op. Баланс кэшируется на короткий TTL, кэш
// сбрасывается после каждого события по позициям.
type OkxManager struct {
	client balanceFetcher
	logger *zap.Logger
	ttl    time.Duration

	mu        sync.Mutex
	cached    *models.Portfolio
	fetchedAt time.Time
}

// NewOkxManager создает биржевой леджер с кэшем баланса
func NewOkxManager(client balanceFetcher, ttl time.Duration, logger *zap.Logger) *OkxManager {
	return &OkxManager{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// GetPortfolio возвращает снимок балансов биржи (из кэша в пределах TTL)
func (m *OkxManager) GetPortfolio(ctx context.Context) (*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached != nil && time.Since(m.fetchedAt) < m.ttl {
		snapshot := *m.cached
		return &snapshot, nil
	}

	balance, err := m.client.GetAccountBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch okx balance: %w", err)
	}

	p := &models.Portfolio{LastUpdated: time.Now()}
	if usdt, ok := balance.Detail(settlementCurrency); ok {
		p.TotalBalance = usdt.Equity
		p.AvailableBalance = usdt.Available
		p.ReservedBalance = usdt.Equity.Sub(usdt.Available)
		p.UnrealizedPnL = usdt.UnrealizedPnL
		if p.ReservedBalance.IsNegative() {
			p.ReservedBalance = decimal.Zero
		}
	}

	m.cached = p
	m.fetchedAt = time.Now()

	snapshot := *p
	return &snapshot, nil
}

// GetAvailableBalance возвращает доступный баланс USDT
func (m *OkxManager) GetAvailableBalance(ctx context.Context) (decimal.Decimal, error) {
	p, err := m.GetPortfolio(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return p.AvailableBalance, nil
}

// ReserveFunds проверяет достаточность средств, ничего не блокируя:
// маржу на бирже резервирует сама биржа.
func (m *OkxManager) ReserveFunds(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	available, err := m.GetAvailableBalance(ctx)
	if err != nil {
		return err
	}
	if available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	return nil
}

// ReleaseFunds - no-op: биржа освобождает маржу при закрытии позиции
func (m *OkxManager) ReleaseFunds(ctx context.Context, amount decimal.Decimal) error {
	return nil
}

// OnPositionOpened сбрасывает кэш: баланс на бирже изменился
func (m *OkxManager) OnPositionOpened(ctx context.Context) error {
	m.InvalidateCache()
	return nil
}

// OnPositionClosed сбрасывает кэш: баланс на бирже изменился
func (m *OkxManager) OnPositionClosed(ctx context.Context, pnl, fees decimal.Decimal) error {
	m.InvalidateCache()
	return nil
}

// UpdateUnrealizedPnL - no-op: нереализованный PnL считает биржа
func (m *OkxManager) UpdateUnrealizedPnL(ctx context.Context, pnl decimal.Decimal) error {
	return nil
}

// InvalidateCache сбрасывает кэш баланса
func (m *OkxManager) InvalidateCache() {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
}
