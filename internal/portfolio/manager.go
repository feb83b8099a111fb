// Package portfolio реализует леджер торгового счета.
//
// Виртуальный менеджер ведет авторитетный баланс в базе данных.
// Биржевой менеджер отдает read-only зеркало балансов OKX и не
// резервирует средства: биржа сама блокирует маржу.
package portfolio

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"statarb/internal/models"
)

// Ошибки леджера
var (
	ErrInsufficientFunds = errors.New("insufficient available balance")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Manager - операции леджера, общие для виртуального и биржевого счета
type Manager interface {
	// GetPortfolio возвращает текущий снимок леджера
	GetPortfolio(ctx context.Context) (*models.Portfolio, error)

	// GetAvailableBalance возвращает доступный для торговли баланс
	GetAvailableBalance(ctx context.Context) (decimal.Decimal, error)

	// ReserveFunds блокирует средства под открываемую позицию
	ReserveFunds(ctx context.Context, amount decimal.Decimal) error

	// ReleaseFunds возвращает блокированные средства в доступный баланс
	ReleaseFunds(ctx context.Context, amount decimal.Decimal) error

	// OnPositionOpened увеличивает счетчик открытых позиций.
	// Комиссии не трогает: они аккумулируются один раз при закрытии.
	OnPositionOpened(ctx context.Context) error

	// OnPositionClosed учитывает закрытие позиции: PnL, суммарную
	// комиссию позиции (открытие+закрытие) и счетчик
	OnPositionClosed(ctx context.Context, pnl, fees decimal.Decimal) error

	// UpdateUnrealizedPnL обновляет нереализованный PnL открытых позиций
	UpdateUnrealizedPnL(ctx context.Context, pnl decimal.Decimal) error

	// InvalidateCache сбрасывает закэшированное состояние (если есть)
	InvalidateCache()
}
