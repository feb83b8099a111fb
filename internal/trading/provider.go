// Package trading реализует исполнение парных сделок: расчет размера
// капитала, адаптивное разбиение на ноги, контроль минимального лота,
// синхронное открытие/закрытие двух ног с компенсирующим откатом и
// реестр открытых пар.
package trading

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"statarb/internal/models"
)

// ProviderType - тип торгового провайдера
type ProviderType string

const (
	ProviderVirtual     ProviderType = "VIRTUAL"
	ProviderOkx         ProviderType = "OKX"
	ProviderThreeCommas ProviderType = "THREE_COMMAS" // объявлен, реализации нет
)

// Ошибки провайдеров
var (
	ErrUnsupportedProvider  = errors.New("unsupported provider type")
	ErrProviderNotConnected = errors.New("provider is not connected")
	ErrPositionNotFound     = errors.New("position not found")
)

// Provider - контракт торгового провайдера. Операции размещения и
// закрытия возвращают TradeResult с флагом успеха вместо error:
// вызывающий всегда получает структурированный результат.
type Provider interface {
	// Type возвращает тип провайдера
	Type() ProviderType

	// IsConnected сообщает готовность провайдера к торговле
	IsConnected() bool

	// GetPortfolio возвращает снимок леджера провайдера
	GetPortfolio(ctx context.Context) (*models.Portfolio, error)

	// GetCurrentPrice возвращает текущую цену инструмента
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// OpenLongPosition открывает длинную ногу на заданную маржу
	OpenLongPosition(ctx context.Context, pair *models.PairData, settings models.Settings, amount decimal.Decimal) *models.TradeResult

	// OpenShortPosition открывает короткую ногу на заданную маржу
	OpenShortPosition(ctx context.Context, pair *models.PairData, settings models.Settings, amount decimal.Decimal) *models.TradeResult

	// ClosePosition закрывает позицию по ее идентификатору
	ClosePosition(ctx context.Context, positionID string) *models.TradeResult

	// GetPosition возвращает позицию по идентификатору
	GetPosition(ctx context.Context, positionID string) (*models.Position, error)

	// GetOpenPositions возвращает все открытые позиции провайдера
	GetOpenPositions(ctx context.Context) ([]*models.Position, error)

	// UpdateAllPositions обновляет текущие цены и нереализованный PnL
	// всех открытых позиций
	UpdateAllPositions(ctx context.Context) error
}
