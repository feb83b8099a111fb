package trading

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"statarb/internal/models"
)

// PositionSizeService вычисляет капитал под пару: фиксированный бюджет
// из настроек, ограниченный доступным балансом.
type PositionSizeService struct {
	logger *zap.Logger
}

// NewPositionSizeService создает сервис расчета размера позиции
func NewPositionSizeService(logger *zap.Logger) *PositionSizeService {
	return &PositionSizeService{logger: logger}
}

// CalculatePositionSize возвращает min(maxLong+maxShort, availableBalance).
// Недоступный портфель дает ноль: при сомнении сделка не открывается.
func (s *PositionSizeService) CalculatePositionSize(ctx context.Context, provider Provider, settings models.Settings) decimal.Decimal {
	p, err := provider.GetPortfolio(ctx)
	if err != nil || p == nil {
		s.logger.Warn("portfolio unavailable, position size is zero", zap.Error(err))
		return decimal.Zero
	}

	total := settings.TotalAllocation()
	if p.AvailableBalance.LessThan(total) {
		return p.AvailableBalance
	}
	return total
}
