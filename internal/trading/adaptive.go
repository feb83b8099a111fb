package trading

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"statarb/internal/models"
)

// Границы перебора доли длинной ноги, в процентах
const (
	minLongShare = 40
	maxLongShare = 60
)

var two = decimal.NewFromInt(2)

// AdaptiveAmountService подбирает разбиение капитала между ногами.
//
// Округление размера до лота биржей делает фактические нотионалы ног
// неравными даже при честном 50/50. Сервис перебирает долю длинной
// ноги от 40% до 60% и выбирает ту, при которой расхождение нотионалов
// после симуляции округления минимально. Возвращаются неокругленные
// суммы: реальное квантование выполнит биржа при размещении ордера.
type AdaptiveAmountService struct {
	logger *zap.Logger
}

// NewAdaptiveAmountService создает сервис адаптивного разбиения
func NewAdaptiveAmountService(logger *zap.Logger) *AdaptiveAmountService {
	return &AdaptiveAmountService{logger: logger}
}

// Calculate возвращает (longAmount, shortAmount) для totalAmount.
// При недоступности любой из цен возвращает разбиение 50/50.
func (s *AdaptiveAmountService) Calculate(ctx context.Context, provider Provider, pair *models.PairData, totalAmount decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	half := totalAmount.Div(two)

	longPrice, err := provider.GetCurrentPrice(ctx, pair.LongTicker)
	if err != nil || !longPrice.IsPositive() {
		s.logger.Warn("long price unavailable, fallback to 50/50",
			zap.String("ticker", pair.LongTicker),
			zap.Error(err),
		)
		return half, half
	}

	shortPrice, err := provider.GetCurrentPrice(ctx, pair.ShortTicker)
	if err != nil || !shortPrice.IsPositive() {
		s.logger.Warn("short price unavailable, fallback to 50/50",
			zap.String("ticker", pair.ShortTicker),
			zap.Error(err),
		)
		return half, half
	}

	hundred := decimal.NewFromInt(100)
	bestLong, bestShort := half, half
	var bestMismatch decimal.Decimal
	first := true

	for p := minLongShare; p <= maxLongShare; p++ {
		longAmount := totalAmount.Mul(decimal.NewFromInt(int64(p))).Div(hundred)
		shortAmount := totalAmount.Sub(longAmount)

		// Симуляция округления: целое число единиц актива на каждую ногу
		adjustedLong := longAmount.Div(longPrice).Floor().Mul(longPrice)
		adjustedShort := shortAmount.Div(shortPrice).Floor().Mul(shortPrice)
		mismatch := adjustedLong.Sub(adjustedShort).Abs()

		if first || mismatch.LessThan(bestMismatch) {
			first = false
			bestMismatch = mismatch
			bestLong, bestShort = longAmount, shortAmount
		}
	}

	s.logger.Debug("adaptive split selected",
		zap.String("pair", pair.PairName),
		zap.String("long_amount", bestLong.String()),
		zap.String("short_amount", bestShort.String()),
		zap.String("mismatch", bestMismatch.String()),
	)

	return bestLong, bestShort
}
