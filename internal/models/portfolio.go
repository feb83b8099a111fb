package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio - снимок состояния счёта (леджер).
//
// Для виртуального провайдера это авторитетная запись с инвариантом
// availableBalance + reservedBalance == totalBalance. Для биржевого
// провайдера поля заполняются из ответа биржи и служат read-only зеркалом.
type Portfolio struct {
	ID int64 `json:"id" db:"id"`

	TotalBalance     decimal.Decimal `json:"total_balance" db:"total_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance" db:"available_balance"`
	ReservedBalance  decimal.Decimal `json:"reserved_balance" db:"reserved_balance"`

	// Начальный баланс для расчёта общей доходности
	InitialBalance decimal.Decimal `json:"initial_balance" db:"initial_balance"`

	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl" db:"unrealized_pnl"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl" db:"realized_pnl"`
	TotalFeesAccrued decimal.Decimal `json:"total_fees_accrued" db:"total_fees_accrued"`

	// Максимальная просадка в процентах от high-water mark
	MaxDrawdown   decimal.Decimal `json:"max_drawdown" db:"max_drawdown"`
	HighWaterMark decimal.Decimal `json:"high_water_mark" db:"high_water_mark"`

	ActivePositionsCount int `json:"active_positions_count" db:"active_positions_count"`

	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// TotalPnL возвращает суммарный PnL (реализованный + нереализованный).
func (p *Portfolio) TotalPnL() decimal.Decimal {
	return p.RealizedPnL.Add(p.UnrealizedPnL)
}

// TotalReturn возвращает доходность портфеля в процентах от начального
// баланса.
func (p *Portfolio) TotalReturn() decimal.Decimal {
	if p.InitialBalance.IsZero() {
		return decimal.Zero
	}
	return p.TotalPnL().
		Div(p.InitialBalance).
		Mul(decimal.NewFromInt(100)).
		Round(4)
}

// CurrentEquity возвращает текущий эквити: баланс плюс нереализованный PnL.
func (p *Portfolio) CurrentEquity() decimal.Decimal {
	return p.TotalBalance.Add(p.UnrealizedPnL)
}

// DepositUtilization возвращает долю депозита в открытых позициях (%).
func (p *Portfolio) DepositUtilization() decimal.Decimal {
	if p.TotalBalance.IsZero() {
		return decimal.Zero
	}
	return p.ReservedBalance.
		Div(p.TotalBalance).
		Mul(decimal.NewFromInt(100)).
		Round(4)
}

// UpdateMaxDrawdown обновляет high-water mark и максимальную просадку.
// MaxDrawdown монотонно неубывающий: однажды зафиксированная просадка
// не уменьшается при восстановлении эквити.
func (p *Portfolio) UpdateMaxDrawdown() {
	equity := p.CurrentEquity()

	if equity.GreaterThan(p.HighWaterMark) {
		p.HighWaterMark = equity
	}

	if p.HighWaterMark.IsPositive() {
		drawdown := p.HighWaterMark.Sub(equity).
			Div(p.HighWaterMark).
			Mul(decimal.NewFromInt(100)).
			Round(4)

		if drawdown.GreaterThan(p.MaxDrawdown) {
			p.MaxDrawdown = drawdown
		}
	}
}
