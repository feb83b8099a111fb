package websocket

import (
	"bytes"
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"statarb/internal/models"
)

// Пул JSON буферов убирает аллокации на каждом Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями
//
// Центральный менеджер broadcast сообщений: фронтенд получает снимки
// леджера, открытые позиции и результаты сделок без polling.
//
// Использование:
//  1. hub := NewHub(logger)
//  2. go hub.Run()
//  3. hub.BroadcastPortfolioUpdate(...)
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	logger *zap.Logger

	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
// Рассылка идет без удержания блокировки: список клиентов копируется
// под коротким RLock, медленные клиенты удаляются отдельным проходом.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", zap.Int("total", total))

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает вычитывать буфер
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
				h.logger.Warn("removed slow websocket clients", zap.Int("count", len(toRemove)))
			}
		}
	}
}

// Broadcast отправляет сообщение всем подключенным клиентам
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.logger.Error("marshal broadcast message", zap.Error(err))
		jsonBufferPool.Put(buf)
		return
	}

	// Encode добавляет trailing newline
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.broadcast <- msgCopy
}

// BroadcastPortfolioUpdate отправляет снимок леджера провайдера
func (h *Hub) BroadcastPortfolioUpdate(provider string, portfolio *models.Portfolio) {
	h.Broadcast(NewPortfolioUpdateMessage(provider, portfolio))
}

// BroadcastPositionUpdate отправляет открытые позиции с обновленным PnL
func (h *Hub) BroadcastPositionUpdate(positions []*models.Position) {
	h.Broadcast(NewPositionUpdateMessage(positions))
}

// BroadcastTradeEvent отправляет результат открытия или закрытия пары
func (h *Hub) BroadcastTradeEvent(operation string, pairID int64, info *models.ArbitragePairTradeInfo) {
	h.Broadcast(NewTradeEventMessage(operation, pairID, info))
}

// BroadcastTicker отправляет тик цены инструмента
func (h *Hub) BroadcastTicker(instID string, last decimal.Decimal) {
	h.Broadcast(NewTickerMessage(instID, last))
}

// BroadcastProviderChanged отправляет уведомление о смене провайдера
func (h *Hub) BroadcastProviderChanged(provider string) {
	h.Broadcast(NewProviderChangedMessage(provider))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
