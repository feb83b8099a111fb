package websocket

import (
	"time"

	"github.com/shopspring/decimal"

	"statarb/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypePortfolioUpdate - снимок леджера активного провайдера.
	// Отправляется на каждом тике обновления позиций.
	MessageTypePortfolioUpdate MessageType = "portfolioUpdate"

	// MessageTypePositionUpdate - открытые позиции с обновленными ценами
	// и нереализованным PnL
	MessageTypePositionUpdate MessageType = "positionUpdate"

	// MessageTypeTradeEvent - результат открытия или закрытия пары
	MessageTypeTradeEvent MessageType = "tradeEvent"

	// MessageTypeProviderChanged - смена активного торгового провайдера
	MessageTypeProviderChanged MessageType = "providerChanged"

	// MessageTypeTicker - тик цены инструмента из публичного потока биржи
	MessageTypeTicker MessageType = "ticker"
)

// BaseMessage - общие поля всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// PortfolioUpdateMessage - снимок леджера
type PortfolioUpdateMessage struct {
	BaseMessage
	Provider  string            `json:"provider"`
	Portfolio *models.Portfolio `json:"portfolio"`
}

// PositionUpdateMessage - открытые позиции после пересчета цен
type PositionUpdateMessage struct {
	BaseMessage
	Positions     []*models.Position `json:"positions"`
	UnrealizedPnL decimal.Decimal    `json:"unrealized_pnl"`
}

// TradeEventMessage - итог операции открытия или закрытия пары
type TradeEventMessage struct {
	BaseMessage
	Operation string                        `json:"operation"` // open, close
	PairID    int64                         `json:"pair_id"`
	Info      *models.ArbitragePairTradeInfo `json:"info"`
}

// ProviderChangedMessage - уведомление о смене провайдера
type ProviderChangedMessage struct {
	BaseMessage
	Provider string `json:"provider"`
}

// NewPortfolioUpdateMessage создает сообщение со снимком леджера
func NewPortfolioUpdateMessage(provider string, portfolio *models.Portfolio) *PortfolioUpdateMessage {
	return &PortfolioUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePortfolioUpdate,
			Timestamp: time.Now(),
		},
		Provider:  provider,
		Portfolio: portfolio,
	}
}

// NewPositionUpdateMessage создает сообщение с открытыми позициями
func NewPositionUpdateMessage(positions []*models.Position) *PositionUpdateMessage {
	total := decimal.Zero
	for _, pos := range positions {
		total = total.Add(pos.UnrealizedPnL)
	}
	return &PositionUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePositionUpdate,
			Timestamp: time.Now(),
		},
		Positions:     positions,
		UnrealizedPnL: total,
	}
}

// NewTradeEventMessage создает сообщение о результате сделки
func NewTradeEventMessage(operation string, pairID int64, info *models.ArbitragePairTradeInfo) *TradeEventMessage {
	return &TradeEventMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTradeEvent,
			Timestamp: time.Now(),
		},
		Operation: operation,
		PairID:    pairID,
		Info:      info,
	}
}

// TickerMessage - тик цены инструмента
type TickerMessage struct {
	BaseMessage
	InstID string          `json:"inst_id"`
	Last   decimal.Decimal `json:"last"`
}

// NewTickerMessage создает сообщение с тиком цены
func NewTickerMessage(instID string, last decimal.Decimal) *TickerMessage {
	return &TickerMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTicker,
			Timestamp: time.Now(),
		},
		InstID: instID,
		Last:   last,
	}
}

// NewProviderChangedMessage создает сообщение о смене провайдера
func NewProviderChangedMessage(provider string) *ProviderChangedMessage {
	return &ProviderChangedMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeProviderChanged,
			Timestamp: time.Now(),
		},
		Provider: provider,
	}
}
