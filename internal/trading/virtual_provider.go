package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"statarb/internal/exchange"
	"statarb/internal/models"
	"statarb/internal/portfolio"
	"statarb/internal/repository"
)

// Комиссия тейкера виртуальной симуляции: 0.1% от нотионала
var virtualFeeRate = decimal.NewFromFloat(0.001)

// positionStore - нужная провайдеру часть PositionRepository
type positionStore interface {
	Create(p *models.Position) error
	Update(p *models.Position) error
	GetByPositionID(positionID string) (*models.Position, error)
	GetAllOpen() ([]*models.Position, error)
}

// priceSource - источник рыночных цен (публичный REST OKX)
type priceSource interface {
	GetTicker(ctx context.Context, instID string) (*exchange.Ticker, error)
}

// VirtualProvider - бумажная торговля по реальным ценам.
// Исполнение мгновенное по последней цене, комиссия фиксированная,
// балансы ведет виртуальный леджер.
type VirtualProvider struct {
	ledger    portfolio.Manager
	positions positionStore
	prices    priceSource
	logger    *zap.Logger
}

// NewVirtualProvider создает виртуальный провайдер
func NewVirtualProvider(ledger portfolio.Manager, positions positionStore, prices priceSource, logger *zap.Logger) *VirtualProvider {
	return &VirtualProvider{
		ledger:    ledger,
		positions: positions,
		prices:    prices,
		logger:    logger,
	}
}

// Type возвращает тип провайдера
func (p *VirtualProvider) Type() ProviderType {
	return ProviderVirtual
}

// IsConnected - виртуальный провайдер всегда готов
func (p *VirtualProvider) IsConnected() bool {
	return true
}

// GetPortfolio возвращает снимок виртуального леджера
func (p *VirtualProvider) GetPortfolio(ctx context.Context) (*models.Portfolio, error) {
	return p.ledger.GetPortfolio(ctx)
}

// GetCurrentPrice возвращает последнюю цену инструмента
func (p *VirtualProvider) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ticker, err := p.prices.GetTicker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return ticker.Last, nil
}

// OpenLongPosition открывает длинную ногу
func (p *VirtualProvider) OpenLongPosition(ctx context.Context, pair *models.PairData, settings models.Settings, amount decimal.Decimal) *models.TradeResult {
	return p.openPosition(ctx, pair, pair.LongTicker, models.SideLong, models.OpOpenLong, settings, amount)
}

// OpenShortPosition открывает короткую ногу
func (p *VirtualProvider) OpenShortPosition(ctx context.Context, pair *models.PairData, settings models.Settings, amount decimal.Decimal) *models.TradeResult {
	return p.openPosition(ctx, pair, pair.ShortTicker, models.SideShort, models.OpOpenShort, settings, amount)
}

func (p *VirtualProvider) openPosition(ctx context.Context, pair *models.PairData, symbol string, side models.PositionSide, op models.TradeOperation, settings models.Settings, amount decimal.Decimal) *models.TradeResult {
	if !amount.IsPositive() {
		return models.TradeFailure(op, symbol, "amount must be positive")
	}

	price, err := p.GetCurrentPrice(ctx, symbol)
	if err != nil || !price.IsPositive() {
		return models.TradeFailure(op, symbol, fmt.Sprintf("price unavailable: %v", err))
	}

	leverage := settings.Leverage
	if !leverage.IsPositive() {
		leverage = decimal.NewFromInt(1)
	}

	if err := p.ledger.ReserveFunds(ctx, amount); err != nil {
		return models.TradeFailure(op, symbol, fmt.Sprintf("reserve funds: %v", err))
	}

	notional := amount.Mul(leverage)
	size := notional.Div(price)
	fee := notional.Mul(virtualFeeRate)

	position := &models.Position{
		PositionID:      uuid.NewString(),
		PairID:          pair.ID,
		Symbol:          symbol,
		Side:            side,
		Size:            size,
		EntryPrice:      price,
		CurrentPrice:    price,
		Leverage:        leverage,
		AllocatedAmount: amount,
		OpeningFees:     fee,
		Status:          models.StatusOpen,
		OpenTime:        time.Now(),
	}

	if err := p.positions.Create(position); err != nil {
		// Откатываем резерв: позиция не состоялась
		if releaseErr := p.ledger.ReleaseFunds(ctx, amount); releaseErr != nil {
			p.logger.Error("release after failed create",
				zap.String("symbol", symbol),
				zap.Error(releaseErr),
			)
		}
		return models.TradeFailure(op, symbol, fmt.Sprintf("persist position: %v", err))
	}

	if err := p.ledger.OnPositionOpened(ctx); err != nil {
		p.logger.Error("ledger open accounting failed",
			zap.String("position_id", position.PositionID),
			zap.Error(err),
		)
	}

	p.logger.Info("virtual position opened",
		zap.String("position_id", position.PositionID),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("size", size.String()),
		zap.String("entry_price", price.String()),
	)

	result := models.TradeSuccess(position.PositionID, op, symbol, size, price, fee)
	result.Size = size
	result.Position = position
	return result
}

// ClosePosition закрывает позицию по текущей цене
func (p *VirtualProvider) ClosePosition(ctx context.Context, positionID string) *models.TradeResult {
	position, err := p.positions.GetByPositionID(positionID)
	if err != nil {
		return models.TradeFailure(models.OpClosePosition, "", fmt.Sprintf("position %s: %v", positionID, err))
	}
	if position.IsClosed() {
		return models.TradeFailure(models.OpClosePosition, position.Symbol, "position already closed")
	}

	price, err := p.GetCurrentPrice(ctx, position.Symbol)
	if err != nil || !price.IsPositive() {
		return models.TradeFailure(models.OpClosePosition, position.Symbol, fmt.Sprintf("price unavailable: %v", err))
	}

	diff := price.Sub(position.EntryPrice)
	if position.Side == models.SideShort {
		diff = diff.Neg()
	}
	grossPnL := diff.Mul(position.Size)
	closingFee := position.AllocatedAmount.Mul(position.Leverage).Mul(virtualFeeRate)

	position.CurrentPrice = price
	position.ClosingPrice = price
	position.SettleRealizedPnL(grossPnL, closingFee)
	position.Status = models.StatusClosed

	if err := p.positions.Update(position); err != nil {
		return models.TradeFailure(models.OpClosePosition, position.Symbol, fmt.Sprintf("persist close: %v", err))
	}

	if err := p.ledger.ReleaseFunds(ctx, position.AllocatedAmount); err != nil {
		p.logger.Error("release on close failed",
			zap.String("position_id", positionID),
			zap.Error(err),
		)
	}
	totalFees := position.OpeningFees.Add(closingFee)
	if err := p.ledger.OnPositionClosed(ctx, position.RealizedPnL, totalFees); err != nil {
		p.logger.Error("ledger close accounting failed",
			zap.String("position_id", positionID),
			zap.Error(err),
		)
	}

	p.logger.Info("virtual position closed",
		zap.String("position_id", positionID),
		zap.String("symbol", position.Symbol),
		zap.String("closing_price", price.String()),
		zap.String("realized_pnl", position.RealizedPnL.String()),
	)

	result := models.TradeSuccess(positionID, models.OpClosePosition, position.Symbol, position.Size, price, closingFee)
	result.PnL = position.RealizedPnL
	result.PnLPercent = position.RealizedPnLPercent
	result.Position = position
	return result
}

// GetPosition возвращает позицию по идентификатору
func (p *VirtualProvider) GetPosition(ctx context.Context, positionID string) (*models.Position, error) {
	position, err := p.positions.GetByPositionID(positionID)
	if err != nil {
		if err == repository.ErrPositionNotFound {
			return nil, ErrPositionNotFound
		}
		return nil, err
	}
	return position, nil
}

// GetOpenPositions возвращает все открытые позиции
func (p *VirtualProvider) GetOpenPositions(ctx context.Context) ([]*models.Position, error) {
	return p.positions.GetAllOpen()
}

// UpdateAllPositions обновляет цены и нереализованный PnL открытых позиций
func (p *VirtualProvider) UpdateAllPositions(ctx context.Context) error {
	positions, err := p.positions.GetAllOpen()
	if err != nil {
		return err
	}

	totalUnrealized := decimal.Zero
	for _, position := range positions {
		price, err := p.GetCurrentPrice(ctx, position.Symbol)
		if err != nil || !price.IsPositive() {
			p.logger.Warn("skip position refresh, price unavailable",
				zap.String("symbol", position.Symbol),
				zap.Error(err),
			)
			continue
		}

		position.CurrentPrice = price
		position.RecalculateUnrealizedPnL()
		totalUnrealized = totalUnrealized.Add(position.UnrealizedPnL)

		if err := p.positions.Update(position); err != nil {
			p.logger.Error("persist position refresh failed",
				zap.String("position_id", position.PositionID),
				zap.Error(err),
			)
		}
	}

	return p.ledger.UpdateUnrealizedPnL(ctx, totalUnrealized)
}
