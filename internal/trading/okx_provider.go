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

// Оценка комиссии тейкера OKX для закрытия через close-position:
// эндпоинт не возвращает детали исполнения, комиссию оцениваем сами
var okxTakerFeeRate = decimal.NewFromFloat(0.0005)

// okxExchange - нужная провайдеру часть биржевого клиента
type okxExchange interface {
	IsConnected() bool
	GetTicker(ctx context.Context, instID string) (*exchange.Ticker, error)
	GetInstrument(ctx context.Context, instID string) (*exchange.Instrument, error)
	PlaceMarketOrder(ctx context.Context, instID, side, posSide string, size decimal.Decimal) (*exchange.Order, error)
	ClosePosition(ctx context.Context, instID, posSide string) error
	GetPositions(ctx context.Context) ([]*exchange.ExchangePosition, error)
}

// OkxProvider исполняет сделки на OKX рыночными ордерами.
// Позиции дублируются в локальной БД: биржа не знает про арбитражные
// пары, связка ног живет только у нас.
type OkxProvider struct {
	client    okxExchange
	ledger    portfolio.Manager
	positions positionStore
	logger    *zap.Logger
}

// NewOkxProvider создает провайдер поверх подключенного клиента OKX
func NewOkxProvider(client okxExchange, ledger portfolio.Manager, positions positionStore, logger *zap.Logger) *OkxProvider {
	return &OkxProvider{
		client:    client,
		ledger:    ledger,
		positions: positions,
		logger:    logger,
	}
}

// Type возвращает тип провайдера
func (p *OkxProvider) Type() ProviderType {
	return ProviderOkx
}

// IsConnected сообщает, авторизован ли биржевой клиент
func (p *OkxProvider) IsConnected() bool {
	return p.client.IsConnected()
}

// GetPortfolio возвращает зеркало биржевого баланса
func (p *OkxProvider) GetPortfolio(ctx context.Context) (*models.Portfolio, error) {
	return p.ledger.GetPortfolio(ctx)
}

// GetCurrentPrice возвращает последнюю цену инструмента
func (p *OkxProvider) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ticker, err := p.client.GetTicker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return ticker.Last, nil
}

// OpenLongPosition открывает длинную ногу рыночным ордером
func (p *OkxProvider) OpenLongPosition(ctx context.Context, pair *models.PairData, settings models.Settings, amount decimal.Decimal) *models.TradeResult {
	return p.openPosition(ctx, pair, pair.LongTicker, models.SideLong, models.OpOpenLong, settings, amount)
}

// OpenShortPosition открывает короткую ногу рыночным ордером
func (p *OkxProvider) OpenShortPosition(ctx context.Context, pair *models.PairData, settings models.Settings, amount decimal.Decimal) *models.TradeResult {
	return p.openPosition(ctx, pair, pair.ShortTicker, models.SideShort, models.OpOpenShort, settings, amount)
}

func (p *OkxProvider) openPosition(ctx context.Context, pair *models.PairData, symbol string, side models.PositionSide, op models.TradeOperation, settings models.Settings, amount decimal.Decimal) *models.TradeResult {
	if !p.client.IsConnected() {
		return models.TradeFailure(op, symbol, ErrProviderNotConnected.Error())
	}
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

	size := amount.Mul(leverage).Div(price)
	size = p.quantizeSize(ctx, symbol, size)
	if !size.IsPositive() {
		_ = p.ledger.ReleaseFunds(ctx, amount)
		return models.TradeFailure(op, symbol, "order size below instrument lot size")
	}

	orderSide := exchange.SideBuy
	posSide := exchange.PosSideLong
	if side == models.SideShort {
		orderSide = exchange.SideSell
		posSide = exchange.PosSideShort
	}

	order, err := p.client.PlaceMarketOrder(ctx, symbol, orderSide, posSide, size)
	if err != nil {
		_ = p.ledger.ReleaseFunds(ctx, amount)
		return models.TradeFailure(op, symbol, fmt.Sprintf("place order: %v", err))
	}

	executedSize := order.FilledSize
	if !executedSize.IsPositive() {
		executedSize = size
	}
	executionPrice := order.AvgPrice
	if !executionPrice.IsPositive() {
		executionPrice = price
	}

	position := &models.Position{
		PositionID:      uuid.NewString(),
		PairID:          pair.ID,
		Symbol:          symbol,
		Side:            side,
		Size:            executedSize,
		EntryPrice:      executionPrice,
		CurrentPrice:    executionPrice,
		Leverage:        leverage,
		AllocatedAmount: amount,
		OpeningFees:     order.Fee,
		Status:          models.StatusOpen,
		OpenTime:        time.Now(),
	}

	if err := p.positions.Create(position); err != nil {
		// Ордер уже исполнен на бирже, позицию не откатываем
		p.logger.Error("order filled but position not persisted",
			zap.String("symbol", symbol),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return models.TradeFailure(op, symbol, fmt.Sprintf("persist position: %v", err))
	}

	if err := p.ledger.OnPositionOpened(ctx); err != nil {
		p.logger.Error("ledger open accounting failed",
			zap.String("position_id", position.PositionID),
			zap.Error(err),
		)
	}

	p.logger.Info("okx position opened",
		zap.String("position_id", position.PositionID),
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.String("order_id", order.ID),
		zap.String("size", executedSize.String()),
		zap.String("avg_price", executionPrice.String()),
	)

	result := models.TradeSuccess(position.PositionID, op, symbol, executedSize, executionPrice, order.Fee)
	result.Size = size
	result.Position = position
	return result
}

// ClosePosition закрывает позицию через эндпоинт close-position.
// Эндпоинт не возвращает цену исполнения, поэтому реализованный PnL
// считаем по последней цене, а комиссию закрытия оцениваем по ставке
// тейкера.
func (p *OkxProvider) ClosePosition(ctx context.Context, positionID string) *models.TradeResult {
	if !p.client.IsConnected() {
		return models.TradeFailure(models.OpClosePosition, "", ErrProviderNotConnected.Error())
	}

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

	posSide := exchange.PosSideLong
	if position.Side == models.SideShort {
		posSide = exchange.PosSideShort
	}
	if err := p.client.ClosePosition(ctx, position.Symbol, posSide); err != nil {
		return models.TradeFailure(models.OpClosePosition, position.Symbol, fmt.Sprintf("close position: %v", err))
	}

	diff := price.Sub(position.EntryPrice)
	if position.Side == models.SideShort {
		diff = diff.Neg()
	}
	grossPnL := diff.Mul(position.Size)
	closingFee := price.Mul(position.Size).Mul(okxTakerFeeRate)

	position.CurrentPrice = price
	position.ClosingPrice = price
	position.SettleRealizedPnL(grossPnL, closingFee)
	position.Status = models.StatusClosed

	if err := p.positions.Update(position); err != nil {
		p.logger.Error("position closed on exchange but not persisted",
			zap.String("position_id", positionID),
			zap.Error(err),
		)
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

	p.logger.Info("okx position closed",
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
func (p *OkxProvider) GetPosition(ctx context.Context, positionID string) (*models.Position, error) {
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
func (p *OkxProvider) GetOpenPositions(ctx context.Context) ([]*models.Position, error) {
	return p.positions.GetAllOpen()
}

// UpdateAllPositions синхронизирует локальные позиции с биржевыми:
// цены берутся из mark price биржи, нереализованный PnL пересчитывается
func (p *OkxProvider) UpdateAllPositions(ctx context.Context) error {
	positions, err := p.positions.GetAllOpen()
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return p.ledger.UpdateUnrealizedPnL(ctx, decimal.Zero)
	}

	exchangePositions, err := p.client.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetch exchange positions: %w", err)
	}
	markPrices := make(map[string]decimal.Decimal, len(exchangePositions))
	for _, ep := range exchangePositions {
		markPrices[ep.InstID+"/"+ep.PosSide] = ep.MarkPrice
	}

	totalUnrealized := decimal.Zero
	for _, position := range positions {
		posSide := exchange.PosSideLong
		if position.Side == models.SideShort {
			posSide = exchange.PosSideShort
		}

		price, ok := markPrices[position.Symbol+"/"+posSide]
		if !ok || !price.IsPositive() {
			// Позиция могла быть закрыта на бирже вручную, цену берем с тикера
			last, err := p.GetCurrentPrice(ctx, position.Symbol)
			if err != nil || !last.IsPositive() {
				p.logger.Warn("skip position refresh, price unavailable",
					zap.String("symbol", position.Symbol),
					zap.Error(err),
				)
				continue
			}
			price = last
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

// quantizeSize округляет размер вниз до шага лота инструмента.
// При недоступности справочника инструментов размер не меняется.
func (p *OkxProvider) quantizeSize(ctx context.Context, symbol string, size decimal.Decimal) decimal.Decimal {
	inst, err := p.client.GetInstrument(ctx, symbol)
	if err != nil || !inst.LotSize.IsPositive() {
		return size
	}
	return size.Div(inst.LotSize).Floor().Mul(inst.LotSize)
}
