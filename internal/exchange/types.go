package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticker содержит информацию о текущей цене инструмента
type Ticker struct {
	InstID    string          `json:"inst_id"`
	Last      decimal.Decimal `json:"last"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Timestamp time.Time       `json:"timestamp"`
}

// AssetBalance - баланс одной валюты на торговом счете
type AssetBalance struct {
	Currency      string          `json:"currency"`
	Equity        decimal.Decimal `json:"equity"`
	Available     decimal.Decimal `json:"available"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// AccountBalance - сводный баланс торгового счета
type AccountBalance struct {
	TotalEquity decimal.Decimal `json:"total_equity"`
	Details     []AssetBalance  `json:"details"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// Detail возвращает баланс валюты и признак ее наличия в ответе
func (b *AccountBalance) Detail(currency string) (AssetBalance, bool) {
	for _, d := range b.Details {
		if d.Currency == currency {
			return d, true
		}
	}
	return AssetBalance{}, false
}

// Instrument - торговые параметры инструмента
type Instrument struct {
	InstID   string          `json:"inst_id"`
	LotSize  decimal.Decimal `json:"lot_size"` // шаг изменения количества
	MinSize  decimal.Decimal `json:"min_size"` // минимальный размер ордера
	TickSize decimal.Decimal `json:"tick_size"`
}

// Order - результат размещения ордера
type Order struct {
	ID         string          `json:"id"`
	InstID     string          `json:"inst_id"`
	Side       string          `json:"side"` // "buy" или "sell"
	Size       decimal.Decimal `json:"size"`
	FilledSize decimal.Decimal `json:"filled_size"`
	AvgPrice   decimal.Decimal `json:"avg_price"`
	Fee        decimal.Decimal `json:"fee"`
	State      string          `json:"state"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ExchangePosition - открытая позиция на бирже
type ExchangePosition struct {
	PositionID    string          `json:"position_id"`
	InstID        string          `json:"inst_id"`
	PosSide       string          `json:"pos_side"` // "long" или "short"
	Size          decimal.Decimal `json:"size"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	MarkPrice     decimal.Decimal `json:"mark_price"`
	Leverage      decimal.Decimal `json:"leverage"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Exchange string
	Code     string
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}

// Order side constants
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Position side constants
const (
	PosSideLong  = "long"
	PosSideShort = "short"
)
