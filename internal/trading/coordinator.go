package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"statarb/internal/models"
)

// providerSource отдает активный провайдер (фабрика либо фикс в тестах)
type providerSource interface {
	Current() Provider
}

// Coordinator исполняет протоколы открытия и закрытия арбитражной пары.
//
// Все последовательности открытия/закрытия/сверки сериализованы одним
// мьютексом: побочные эффекты двух протоколов никогда не перемешиваются,
// ценой того, что долгий биржевой вызов блокирует остальные пары.
type Coordinator struct {
	mu sync.Mutex

	providers providerSource
	sizing    *PositionSizeService
	adaptive  *AdaptiveAmountService
	minLot    *MinLotValidator
	registry  *PairRegistry
	logger    *zap.Logger
}

// NewCoordinator создает координатор исполнения пар
func NewCoordinator(providers providerSource, sizing *PositionSizeService, adaptive *AdaptiveAmountService, minLot *MinLotValidator, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		providers: providers,
		sizing:    sizing,
		adaptive:  adaptive,
		minLot:    minLot,
		registry:  NewPairRegistry(),
		logger:    logger,
	}
}

// Registry возвращает реестр открытых пар
func (c *Coordinator) Registry() *PairRegistry {
	return c.registry
}

// ============================================================
// Протокол открытия
// ============================================================

// OpenArbitragePair открывает обе ноги пары: сначала длинную, затем
// короткую. При отказе короткой ноги выполняется ровно одна
// компенсирующая попытка закрыть длинную, без повторов.
func (c *Coordinator) OpenArbitragePair(ctx context.Context, pair *models.PairData, settings models.Settings) *models.ArbitragePairTradeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	provider := c.providers.Current()

	if _, exists := c.registry.Get(pair.ID); exists {
		return openFailure(fmt.Sprintf("pair %d already has open positions", pair.ID))
	}

	// Гейт 1: бюджет пары
	totalAmount := c.sizing.CalculatePositionSize(ctx, provider, settings)
	if !totalAmount.IsPositive() {
		RecordAdmissionRejection("position_size")
		RecordPairTrade("open", "rejected")
		return openFailure("position size is zero, insufficient balance or budget")
	}

	longAmount, shortAmount := c.adaptive.Calculate(ctx, provider, pair, totalAmount)

	// Гейт 2: минимальный лот
	if !c.minLot.Validate(ctx, provider, pair, longAmount, shortAmount) {
		RecordAdmissionRejection("min_lot")
		RecordPairTrade("open", "rejected")
		return openFailure("minimum lot requirements not met")
	}

	balanceBefore := decimal.Zero
	if portfolio, err := provider.GetPortfolio(ctx); err == nil && portfolio != nil {
		balanceBefore = portfolio.AvailableBalance
	}

	start := time.Now()
	longResult := provider.OpenLongPosition(ctx, pair, settings, longAmount)
	ObserveLegExecution("open_long", string(provider.Type()), time.Since(start))
	if !longResult.Success {
		c.logger.Error("long leg failed, nothing to roll back",
			zap.Int64("pair_id", pair.ID),
			zap.String("symbol", pair.LongTicker),
			zap.String("error", longResult.ErrorMessage),
		)
		RecordPairTrade("open", "failure")
		info := openFailure("long leg failed: " + longResult.ErrorMessage)
		info.LongResult = longResult
		info.BalanceBefore = balanceBefore
		return info
	}

	start = time.Now()
	shortResult := provider.OpenShortPosition(ctx, pair, settings, shortAmount)
	ObserveLegExecution("open_short", string(provider.Type()), time.Since(start))
	if !shortResult.Success {
		// Компенсация: одна попытка закрыть длинную ногу, без повторов
		rollback := provider.ClosePosition(ctx, longResult.PositionID)
		if rollback.Success {
			RecordPairTrade("open", "rollback")
			c.logger.Warn("short leg failed, long leg rolled back",
				zap.Int64("pair_id", pair.ID),
				zap.String("long_position_id", longResult.PositionID),
				zap.String("error", shortResult.ErrorMessage),
			)
		} else {
			c.logger.Error("short leg failed and rollback failed, residual long leg remains",
				zap.Int64("pair_id", pair.ID),
				zap.String("long_position_id", longResult.PositionID),
				zap.String("short_error", shortResult.ErrorMessage),
				zap.String("rollback_error", rollback.ErrorMessage),
			)
		}
		RecordPairTrade("open", "failure")
		info := openFailure("short leg failed: " + shortResult.ErrorMessage)
		info.LongResult = longResult
		info.ShortResult = shortResult
		info.BalanceBefore = balanceBefore
		return info
	}

	c.registry.Put(pair.ID, longResult.PositionID, shortResult.PositionID)
	UpdateOpenPairs(c.registry.Count())
	RecordPairTrade("open", "success")

	c.logger.Info("arbitrage pair opened",
		zap.Int64("pair_id", pair.ID),
		zap.String("pair_name", pair.PairName),
		zap.String("long_position_id", longResult.PositionID),
		zap.String("short_position_id", shortResult.PositionID),
		zap.String("balance_before", balanceBefore.String()),
	)

	return &models.ArbitragePairTradeInfo{
		Success:       true,
		LongResult:    longResult,
		ShortResult:   shortResult,
		BalanceBefore: balanceBefore,
	}
}

// ============================================================
// Протокол закрытия
// ============================================================

// CloseArbitragePair закрывает обе ноги пары последовательно: длинную,
// затем короткую. Идемпотентен: для пары без записей в реестре сразу
// возвращает успех с нулевым PnL, не обращаясь к провайдеру.
func (c *Coordinator) CloseArbitragePair(ctx context.Context, pairID int64) *models.ArbitragePairTradeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, exists := c.registry.Get(pairID)
	if !exists {
		c.logger.Info("close requested for untracked pair, treating as closed",
			zap.Int64("pair_id", pairID),
		)
		return &models.ArbitragePairTradeInfo{Success: true}
	}

	provider := c.providers.Current()

	start := time.Now()
	longResult := provider.ClosePosition(ctx, ids.LongPositionID)
	ObserveLegExecution("close_long", string(provider.Type()), time.Since(start))

	start = time.Now()
	shortResult := provider.ClosePosition(ctx, ids.ShortPositionID)
	ObserveLegExecution("close_short", string(provider.Type()), time.Since(start))

	totalPnL := decimal.Zero
	totalFees := decimal.Zero
	if longResult.Success {
		totalPnL = totalPnL.Add(longResult.PnL)
		totalFees = totalFees.Add(longResult.Fees)
	} else {
		c.logger.Error("long leg close failed",
			zap.Int64("pair_id", pairID),
			zap.String("position_id", ids.LongPositionID),
			zap.String("error", longResult.ErrorMessage),
		)
	}
	if shortResult.Success {
		totalPnL = totalPnL.Add(shortResult.PnL)
		totalFees = totalFees.Add(shortResult.Fees)
	} else {
		c.logger.Error("short leg close failed",
			zap.Int64("pair_id", pairID),
			zap.String("position_id", ids.ShortPositionID),
			zap.String("error", shortResult.ErrorMessage),
		)
	}

	success := longResult.Success && shortResult.Success
	if success {
		// Запись удаляется только при полном закрытии: иначе повторный
		// вызов доберет оставшуюся ногу
		c.registry.Remove(pairID)
		UpdateOpenPairs(c.registry.Count())
		RecordPairTrade("close", "success")
		RecordRealizedPnl(totalPnL.InexactFloat64())
	} else {
		RecordPairTrade("close", "failure")
	}

	c.logger.Info("arbitrage pair close finished",
		zap.Int64("pair_id", pairID),
		zap.Bool("success", success),
		zap.String("total_pnl", totalPnL.String()),
		zap.String("total_fees", totalFees.String()),
	)

	info := &models.ArbitragePairTradeInfo{
		Success:     success,
		LongResult:  longResult,
		ShortResult: shortResult,
		TotalPnL:    totalPnL,
		TotalFees:   totalFees,
	}
	if !success {
		info.ErrorMessage = "one or more legs failed to close"
	}
	return info
}

// ============================================================
// Запросы статуса
// ============================================================

// VerifyPositionsClosed сверяет закрытие обеих ног. Если обе закрыты,
// запись пары удаляется из реестра и возвращается реализованный PnL.
// При частичном закрытии пара остается в реестре с нулевым PnL.
func (c *Coordinator) VerifyPositionsClosed(ctx context.Context, pairID int64) *models.PositionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, exists := c.registry.Get(pairID)
	if !exists {
		return &models.PositionInfo{PositionsClosed: true}
	}

	provider := c.providers.Current()
	long := c.loadPosition(ctx, provider, ids.LongPositionID)
	short := c.loadPosition(ctx, provider, ids.ShortPositionID)
	c.refreshIfOpen(ctx, provider, long)
	c.refreshIfOpen(ctx, provider, short)

	if long.IsClosed() && short.IsClosed() {
		c.registry.Remove(pairID)
		UpdateOpenPairs(c.registry.Count())

		info := &models.PositionInfo{
			PositionsClosed: true,
			LongPosition:    long,
			ShortPosition:   short,
		}
		info.TotalPnL = long.RealizedPnL.Add(short.RealizedPnL)
		info.TotalPnLPercent = aggregatePercent(info.TotalPnL, long, short)
		return info
	}

	c.logger.Warn("pair positions not fully closed",
		zap.Int64("pair_id", pairID),
		zap.Bool("long_closed", long.IsClosed()),
		zap.Bool("short_closed", short.IsClosed()),
	)
	return &models.PositionInfo{
		PositionsClosed: false,
		LongPosition:    long,
		ShortPosition:   short,
	}
}

// GetOpenPositionsInfo возвращает агрегированный нереализованный PnL
// пары. Если хотя бы одна нога не в статусе OPEN, возвращается
// частично-закрытый агрегат с нулевым PnL и доступными позициями.
func (c *Coordinator) GetOpenPositionsInfo(ctx context.Context, pairID int64) *models.PositionInfo {
	ids, exists := c.registry.Get(pairID)
	if !exists {
		return &models.PositionInfo{PositionsClosed: true}
	}

	provider := c.providers.Current()
	long := c.loadPosition(ctx, provider, ids.LongPositionID)
	short := c.loadPosition(ctx, provider, ids.ShortPositionID)
	c.refreshIfOpen(ctx, provider, long)
	c.refreshIfOpen(ctx, provider, short)

	if !long.IsOpen() || !short.IsOpen() {
		return &models.PositionInfo{
			PositionsClosed: false,
			LongPosition:    long,
			ShortPosition:   short,
		}
	}

	info := &models.PositionInfo{
		PositionsClosed: false,
		LongPosition:    long,
		ShortPosition:   short,
	}
	info.TotalPnL = long.UnrealizedPnL.Add(short.UnrealizedPnL)
	info.TotalPnLPercent = aggregatePercent(info.TotalPnL, long, short)
	return info
}

// GetPositionInfo - проба статуса пары без мутации реестра. Цены
// обновляются только если пара еще открыта.
func (c *Coordinator) GetPositionInfo(ctx context.Context, pairID int64) *models.PositionInfo {
	ids, exists := c.registry.Get(pairID)
	if !exists {
		return &models.PositionInfo{PositionsClosed: true}
	}

	provider := c.providers.Current()
	long := c.loadPosition(ctx, provider, ids.LongPositionID)
	short := c.loadPosition(ctx, provider, ids.ShortPositionID)

	if long.IsClosed() && short.IsClosed() {
		info := &models.PositionInfo{
			PositionsClosed: true,
			LongPosition:    long,
			ShortPosition:   short,
		}
		info.TotalPnL = long.RealizedPnL.Add(short.RealizedPnL)
		info.TotalPnLPercent = aggregatePercent(info.TotalPnL, long, short)
		return info
	}

	c.refreshIfOpen(ctx, provider, long)
	c.refreshIfOpen(ctx, provider, short)

	info := &models.PositionInfo{
		PositionsClosed: false,
		LongPosition:    long,
		ShortPosition:   short,
	}
	if long.IsOpen() && short.IsOpen() {
		info.TotalPnL = long.UnrealizedPnL.Add(short.UnrealizedPnL)
		info.TotalPnLPercent = aggregatePercent(info.TotalPnL, long, short)
	}
	return info
}

// ============================================================
// Восстановление после рестарта
// ============================================================

// RestoreOpenPositions перестраивает реестр пар из открытых позиций
// провайдера. Пары без обеих ног в реестр не попадают.
func (c *Coordinator) RestoreOpenPositions(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	provider := c.providers.Current()
	positions, err := provider.GetOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}

	legs := make(map[int64]*PairPositions)
	for _, position := range positions {
		entry := legs[position.PairID]
		if entry == nil {
			entry = &PairPositions{}
			legs[position.PairID] = entry
		}
		switch position.Side {
		case models.SideLong:
			entry.LongPositionID = position.PositionID
		case models.SideShort:
			entry.ShortPositionID = position.PositionID
		}
	}

	restored := 0
	for pairID, entry := range legs {
		if entry.LongPositionID == "" || entry.ShortPositionID == "" {
			c.logger.Warn("open pair with a single leg, not restoring",
				zap.Int64("pair_id", pairID),
				zap.String("long_position_id", entry.LongPositionID),
				zap.String("short_position_id", entry.ShortPositionID),
			)
			continue
		}
		c.registry.Put(pairID, entry.LongPositionID, entry.ShortPositionID)
		restored++
	}

	UpdateOpenPairs(c.registry.Count())
	c.logger.Info("open pairs restored", zap.Int("pairs", restored))
	return nil
}

// ============================================================
// Вспомогательные
// ============================================================

func (c *Coordinator) loadPosition(ctx context.Context, provider Provider, positionID string) *models.Position {
	position, err := provider.GetPosition(ctx, positionID)
	if err != nil {
		c.logger.Warn("position lookup failed",
			zap.String("position_id", positionID),
			zap.Error(err),
		)
		return nil
	}
	return position
}

func (c *Coordinator) refreshIfOpen(ctx context.Context, provider Provider, position *models.Position) {
	if !position.IsOpen() {
		return
	}
	price, err := provider.GetCurrentPrice(ctx, position.Symbol)
	if err != nil || !price.IsPositive() {
		c.logger.Warn("price refresh failed",
			zap.String("symbol", position.Symbol),
			zap.Error(err),
		)
		return
	}
	position.CurrentPrice = price
	position.RecalculateUnrealizedPnL()
}

func aggregatePercent(totalPnL decimal.Decimal, long, short *models.Position) decimal.Decimal {
	allocated := decimal.Zero
	if long != nil {
		allocated = allocated.Add(long.AllocatedAmount)
	}
	if short != nil {
		allocated = allocated.Add(short.AllocatedAmount)
	}
	if !allocated.IsPositive() {
		return decimal.Zero
	}
	return totalPnL.Div(allocated).Mul(decimal.NewFromInt(100)).Round(4)
}

func openFailure(message string) *models.ArbitragePairTradeInfo {
	return &models.ArbitragePairTradeInfo{
		Success:      false,
		ErrorMessage: message,
	}
}
