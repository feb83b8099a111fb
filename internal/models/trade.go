package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Тип торговой операции
type TradeOperation string

const (
	OpOpenLong      TradeOperation = "OPEN_LONG"
	OpOpenShort     TradeOperation = "OPEN_SHORT"
	OpClosePosition TradeOperation = "CLOSE_POSITION"
)

// TradeResult - результат одной операции провайдера. Эфемерный объект:
// возвращается вызывающему и не персистится. Ошибки не пробрасываются
// паникой или error через публичный API движка - провайдер упаковывает
// их в Success=false + ErrorMessage.
type TradeResult struct {
	Success    bool           `json:"success"`
	PositionID string         `json:"position_id"`
	Operation  TradeOperation `json:"operation"`
	Symbol     string         `json:"symbol"`

	Size           decimal.Decimal `json:"size"`            // запрошенный размер
	ExecutedSize   decimal.Decimal `json:"executed_size"`   // фактически исполненный
	ExecutionPrice decimal.Decimal `json:"execution_price"` // средняя цена исполнения
	Fees           decimal.Decimal `json:"fees"`
	PnL            decimal.Decimal `json:"pnl"`        // для операций закрытия
	PnLPercent     decimal.Decimal `json:"pnl_percent"`

	ExecutionTime time.Time `json:"execution_time"`
	ErrorMessage  string    `json:"error_message,omitempty"`

	// Позиция, созданная операцией открытия (nil для закрытия/ошибок)
	Position *Position `json:"position,omitempty"`
}

// TradeSuccess создаёт успешный результат операции.
func TradeSuccess(positionID string, op TradeOperation, symbol string, executedSize, executionPrice, fees decimal.Decimal) *TradeResult {
	return &TradeResult{
		Success:        true,
		PositionID:     positionID,
		Operation:      op,
		Symbol:         symbol,
		ExecutedSize:   executedSize,
		ExecutionPrice: executionPrice,
		Fees:           fees,
		ExecutionTime:  time.Now(),
	}
}

// TradeFailure создаёт результат с ошибкой.
func TradeFailure(op TradeOperation, symbol, errorMessage string) *TradeResult {
	return &TradeResult{
		Success:       false,
		Operation:     op,
		Symbol:        symbol,
		ErrorMessage:  errorMessage,
		ExecutionTime: time.Now(),
	}
}

// ArbitragePairTradeInfo - агрегированный результат открытия/закрытия
// арбитражной пары. Возвращается вызывающему (планировщик/UI), не
// персистится.
type ArbitragePairTradeInfo struct {
	Success bool `json:"success"`

	LongResult  *TradeResult `json:"long_result,omitempty"`
	ShortResult *TradeResult `json:"short_result,omitempty"`

	// Снимок доступного баланса перед сделкой (для аудита)
	BalanceBefore decimal.Decimal `json:"balance_before"`

	// Суммарный PnL и комиссии по успешным ногам (для закрытия)
	TotalPnL  decimal.Decimal `json:"total_pnl"`
	TotalFees decimal.Decimal `json:"total_fees"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// PositionInfo - результат проверки статуса позиций пары.
type PositionInfo struct {
	// Обе ли ноги закрыты
	PositionsClosed bool `json:"positions_closed"`

	LongPosition  *Position `json:"long_position,omitempty"`
	ShortPosition *Position `json:"short_position,omitempty"`

	TotalPnL        decimal.Decimal `json:"total_pnl"`
	TotalPnLPercent decimal.Decimal `json:"total_pnl_percent"`
}
