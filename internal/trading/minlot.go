package trading

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"statarb/internal/models"
)

// MinLotValidator - допусковый контроль минимального лота.
//
// Когда цена единицы актива велика относительно выделенной суммы,
// минимальный целый лот раздувает фактический нотионал кратно
// запрошенному. Пара отклоняется, если раздувание любой из ног
// превышает maxExcessRatio. Недоступность цены трактуется fail-open:
// сама по себе она не должна блокировать торговлю.
type MinLotValidator struct {
	maxExcessRatio decimal.Decimal
	logger         *zap.Logger
}

// NewMinLotValidator создает валидатор с заданным пределом раздувания
func NewMinLotValidator(maxExcessRatio decimal.Decimal, logger *zap.Logger) *MinLotValidator {
	return &MinLotValidator{
		maxExcessRatio: maxExcessRatio,
		logger:         logger,
	}
}

// Validate проверяет обе ноги пары. Ровно предельное отношение проходит.
func (v *MinLotValidator) Validate(ctx context.Context, provider Provider, pair *models.PairData, longAmount, shortAmount decimal.Decimal) bool {
	return v.checkLeg(ctx, provider, pair.LongTicker, longAmount) &&
		v.checkLeg(ctx, provider, pair.ShortTicker, shortAmount)
}

func (v *MinLotValidator) checkLeg(ctx context.Context, provider Provider, ticker string, amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		v.logger.Warn("non-positive leg amount, allowing", zap.String("ticker", ticker))
		return true
	}

	price, err := provider.GetCurrentPrice(ctx, ticker)
	if err != nil || !price.IsPositive() {
		v.logger.Warn("price unavailable for lot check, allowing",
			zap.String("ticker", ticker),
			zap.Error(err),
		)
		return true
	}

	desiredSize := amount.Div(price)
	adjustedSize := desiredSize.Floor()
	if adjustedSize.LessThan(decimal.NewFromInt(1)) {
		adjustedSize = decimal.NewFromInt(1)
	}

	adjustedAmount := adjustedSize.Mul(price)
	excessRatio := adjustedAmount.Div(amount)

	if excessRatio.GreaterThan(v.maxExcessRatio) {
		v.logger.Warn("minimum lot inflates notional beyond limit",
			zap.String("ticker", ticker),
			zap.String("desired_amount", amount.String()),
			zap.String("adjusted_amount", adjustedAmount.String()),
			zap.String("excess_ratio", excessRatio.String()),
		)
		return false
	}

	return true
}
