package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Направление ноги
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// Статус позиции. Позиции физически не удаляются: статус переходит в
// CLOSED, запись остаётся в истории.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// Position представляет одну ногу арбитражной пары.
type Position struct {
	ID         int64  `json:"id" db:"id"`
	PositionID string `json:"position_id" db:"position_id"` // ID позиции от биржи либо uuid для виртуальной
	PairID     int64  `json:"pair_id" db:"pair_id"`
	Symbol     string `json:"symbol" db:"symbol"`

	Side PositionSide `json:"side" db:"side"`

	Size            decimal.Decimal `json:"size" db:"size"`
	EntryPrice      decimal.Decimal `json:"entry_price" db:"entry_price"`
	ClosingPrice    decimal.Decimal `json:"closing_price" db:"closing_price"`
	CurrentPrice    decimal.Decimal `json:"current_price" db:"current_price"`
	Leverage        decimal.Decimal `json:"leverage" db:"leverage"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount" db:"allocated_amount"`

	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl" db:"unrealized_pnl"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent" db:"unrealized_pnl_percent"`
	RealizedPnL          decimal.Decimal `json:"realized_pnl" db:"realized_pnl"`
	RealizedPnLPercent   decimal.Decimal `json:"realized_pnl_percent" db:"realized_pnl_percent"`

	OpeningFees decimal.Decimal `json:"opening_fees" db:"opening_fees"`
	FundingFees decimal.Decimal `json:"funding_fees" db:"funding_fees"`
	ClosingFees decimal.Decimal `json:"closing_fees" db:"closing_fees"`

	Status PositionStatus `json:"status" db:"status"`

	OpenTime    time.Time `json:"open_time" db:"open_time"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// IsOpen сообщает, открыта ли позиция.
func (p *Position) IsOpen() bool {
	return p != nil && p.Status == StatusOpen
}

// IsClosed сообщает, закрыта ли позиция.
func (p *Position) IsClosed() bool {
	return p != nil && p.Status == StatusClosed
}

// RecalculateUnrealizedPnL пересчитывает нереализованный PnL позиции
// исходя из CurrentPrice. Комиссии за открытие вычитаются сразу: нога
// считается прибыльной только после их покрытия.
func (p *Position) RecalculateUnrealizedPnL() {
	if p.EntryPrice.IsZero() || p.Size.IsZero() {
		p.UnrealizedPnL = decimal.Zero
		p.UnrealizedPnLPercent = decimal.Zero
		return
	}

	diff := p.CurrentPrice.Sub(p.EntryPrice)
	if p.Side == SideShort {
		diff = diff.Neg()
	}

	gross := diff.Mul(p.Size)
	fees := p.OpeningFees.Sub(p.FundingFees)
	p.UnrealizedPnL = gross.Sub(fees)

	if p.AllocatedAmount.IsPositive() {
		p.UnrealizedPnLPercent = p.UnrealizedPnL.
			Div(p.AllocatedAmount).
			Mul(decimal.NewFromInt(100)).
			Round(4)
	} else {
		p.UnrealizedPnLPercent = decimal.Zero
	}
}

// SettleRealizedPnL фиксирует реализованный PnL при закрытии: из грязного
// PnL вычитаются комиссии за открытие и закрытие, funding прибавляется.
// Нереализованный PnL при этом обнуляется.
func (p *Position) SettleRealizedPnL(grossPnL, closingFees decimal.Decimal) {
	totalFees := p.OpeningFees.Add(closingFees).Sub(p.FundingFees)
	p.RealizedPnL = grossPnL.Sub(totalFees)
	p.ClosingFees = closingFees

	if p.AllocatedAmount.IsPositive() {
		p.RealizedPnLPercent = p.RealizedPnL.
			Div(p.AllocatedAmount).
			Mul(decimal.NewFromInt(100)).
			Round(4)
	} else {
		p.RealizedPnLPercent = decimal.Zero
	}

	p.UnrealizedPnL = decimal.Zero
	p.UnrealizedPnLPercent = decimal.Zero
}
