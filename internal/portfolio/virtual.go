package portfolio

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"statarb/internal/models"
	"statarb/internal/repository"
	"statarb/pkg/retry"
)

// portfolioStore - нужная менеджеру часть PortfolioRepository
type portfolioStore interface {
	Save(p *models.Portfolio) error
	Latest() (*models.Portfolio, error)
}

// VirtualManager - авторитетный леджер виртуального счета.
//
// Инварианты, которые менеджер поддерживает на каждой мутации:
//   - availableBalance + reservedBalance == totalBalance
//   - availableBalance >= 0
//
// Все мутации сериализованы мьютексом и сохраняются в базу с повтором
// при конкурентной блокировке (SQLITE_BUSY).
type VirtualManager struct {
	mu sync.Mutex

	repo           portfolioStore
	logger         *zap.Logger
	initialBalance decimal.Decimal
}

// NewVirtualManager создает виртуальный леджер
func NewVirtualManager(repo portfolioStore, initialBalance decimal.Decimal, logger *zap.Logger) *VirtualManager {
	return &VirtualManager{
		repo:           repo,
		logger:         logger,
		initialBalance: initialBalance,
	}
}

// GetPortfolio возвращает текущий снимок, создавая начальный при первом вызове
func (m *VirtualManager) GetPortfolio(ctx context.Context) (*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadOrInit(ctx)
}

// loadOrInit загружает последний снимок леджера. Вызывается под мьютексом.
func (m *VirtualManager) loadOrInit(ctx context.Context) (*models.Portfolio, error) {
	p, err := m.repo.Latest()
	if err == nil {
		return p, nil
	}
	if err != repository.ErrPortfolioNotFound {
		return nil, err
	}

	p = &models.Portfolio{
		TotalBalance:     m.initialBalance,
		AvailableBalance: m.initialBalance,
		ReservedBalance:  decimal.Zero,
		InitialBalance:   m.initialBalance,
		HighWaterMark:    m.initialBalance,
		CreatedAt:        time.Now(),
	}
	if err := m.saveWithRetry(ctx, p); err != nil {
		return nil, err
	}

	m.logger.Info("virtual portfolio initialized",
		zap.String("initial_balance", m.initialBalance.String()),
	)
	return p, nil
}

// GetAvailableBalance возвращает доступный баланс
func (m *VirtualManager) GetAvailableBalance(ctx context.Context) (decimal.Decimal, error) {
	p, err := m.GetPortfolio(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return p.AvailableBalance, nil
}

// CalculateMaxPositionSize возвращает предельный размер позиции:
// доля от общего баланса, но не больше доступных средств
func (m *VirtualManager) CalculateMaxPositionSize(ctx context.Context, percent decimal.Decimal) (decimal.Decimal, error) {
	p, err := m.GetPortfolio(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	limit := p.TotalBalance.Mul(percent)
	if p.AvailableBalance.LessThan(limit) {
		return p.AvailableBalance, nil
	}
	return limit, nil
}

// ReserveFunds переводит средства из доступных в заблокированные
func (m *VirtualManager) ReserveFunds(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.loadOrInit(ctx)
	if err != nil {
		return err
	}

	if p.AvailableBalance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	p.AvailableBalance = p.AvailableBalance.Sub(amount)
	p.ReservedBalance = p.ReservedBalance.Add(amount)

	return m.saveWithRetry(ctx, p)
}

// ReleaseFunds возвращает заблокированные средства в доступные.
// Сумма сверх заблокированной не освобождается.
func (m *VirtualManager) ReleaseFunds(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.loadOrInit(ctx)
	if err != nil {
		return err
	}

	release := amount
	if release.GreaterThan(p.ReservedBalance) {
		m.logger.Warn("release exceeds reserved, clamping",
			zap.String("requested", amount.String()),
			zap.String("reserved", p.ReservedBalance.String()),
		)
		release = p.ReservedBalance
	}

	p.ReservedBalance = p.ReservedBalance.Sub(release)
	p.AvailableBalance = p.AvailableBalance.Add(release)

	return m.saveWithRetry(ctx, p)
}

// OnPositionOpened увеличивает счетчик открытых позиций. Балансы и
// комиссии не трогает: маржа уже заблокирована через ReserveFunds, а
// комиссия открытия аккумулируется вместе с комиссией закрытия в
// OnPositionClosed.
func (m *VirtualManager) OnPositionOpened(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.loadOrInit(ctx)
	if err != nil {
		return err
	}

	p.ActivePositionsCount++

	return m.saveWithRetry(ctx, p)
}

// OnPositionClosed применяет реализованный PnL (уже за вычетом комиссий):
// totalBalance меняется ровно на pnl, fees - суммарная комиссия позиции,
// единственная точка ее аккумуляции.
func (m *VirtualManager) OnPositionClosed(ctx context.Context, pnl, fees decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.loadOrInit(ctx)
	if err != nil {
		return err
	}

	p.TotalBalance = p.TotalBalance.Add(pnl)
	p.AvailableBalance = p.AvailableBalance.Add(pnl)
	p.RealizedPnL = p.RealizedPnL.Add(pnl)
	p.TotalFeesAccrued = p.TotalFeesAccrued.Add(fees)
	if p.ActivePositionsCount > 0 {
		p.ActivePositionsCount--
	}

	m.clampBalances(p)
	p.UpdateMaxDrawdown()

	return m.saveWithRetry(ctx, p)
}

// UpdateUnrealizedPnL обновляет нереализованный PnL и просадку
func (m *VirtualManager) UpdateUnrealizedPnL(ctx context.Context, pnl decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.loadOrInit(ctx)
	if err != nil {
		return err
	}

	p.UnrealizedPnL = pnl
	p.UpdateMaxDrawdown()

	return m.saveWithRetry(ctx, p)
}

// InvalidateCache для виртуального леджера не нужен: база авторитетна
func (m *VirtualManager) InvalidateCache() {}

// clampBalances не дает доступному балансу уйти в минус: убыток сверх
// доступных средств поглощается общим балансом.
func (m *VirtualManager) clampBalances(p *models.Portfolio) {
	if p.AvailableBalance.IsNegative() {
		p.AvailableBalance = decimal.Zero
	}
	p.TotalBalance = p.AvailableBalance.Add(p.ReservedBalance)
}

// saveWithRetry сохраняет снимок, повторяя запись при конкурентной
// блокировке базы: 3 попытки с паузами 50ms и 75ms.
func (m *VirtualManager) saveWithRetry(ctx context.Context, p *models.Portfolio) error {
	cfg := retry.Config{
		MaxRetries:   3,
		InitialDelay: 50 * time.Millisecond,
		Multiplier:   1.5,
		RetryIf:      repository.IsBusyError,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			m.logger.Warn("portfolio save retry",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		},
	}
	return retry.Do(ctx, cfg, func() error {
		return m.repo.Save(p)
	})
}
