package models

import "github.com/shopspring/decimal"

// PairData описывает кандидата на арбитражную пару.
// Приходит из внешнего пайплайна отбора пар (коинтеграция/Z-score),
// здесь используется только для чтения.
type PairData struct {
	ID          int64  `json:"id" db:"id"`
	PairName    string `json:"pair_name" db:"pair_name"`       // "ADA-USDT-SWAP / SOL-USDT-SWAP"
	LongTicker  string `json:"long_ticker" db:"long_ticker"`   // тикер лонг ноги
	ShortTicker string `json:"short_ticker" db:"short_ticker"` // тикер шорт ноги
}

// Settings - торговые настройки, поставляются конфигурационным хранилищем.
// Движок исполнения читает их как value object и никогда не мутирует.
type Settings struct {
	Leverage              decimal.Decimal `json:"leverage"`
	MaxLongMarginSize     decimal.Decimal `json:"max_long_margin_size"`  // бюджет лонг ноги в USDT
	MaxShortMarginSize    decimal.Decimal `json:"max_short_margin_size"` // бюджет шорт ноги в USDT
	InitialVirtualBalance decimal.Decimal `json:"initial_virtual_balance"`
}

// TotalAllocation возвращает суммарный бюджет пары (фиксированная сумма
// в USDT, не процент от эквити).
func (s Settings) TotalAllocation() decimal.Decimal {
	return s.MaxLongMarginSize.Add(s.MaxShortMarginSize)
}
