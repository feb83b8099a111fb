package exchange

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// PriceStream - поток цен через публичный WebSocket OKX (канал tickers).
// Переподключение и восстановление подписок выполняет WSReconnectManager.
type PriceStream struct {
	manager *WSReconnectManager
	logger  *zap.Logger

	callbacks   map[string][]func(*Ticker)
	callbacksMu sync.RWMutex
}

// wsSubscribeMsg - запрос подписки на канал OKX
type wsSubscribeMsg struct {
	Op   string      `json:"op"`
	Args []wsChannel `json:"args"`
}

type wsChannel struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// NewPriceStream создает поток цен для публичного WebSocket OKX
func NewPriceStream(wsURL string, config WSReconnectConfig, logger *zap.Logger) *PriceStream {
	s := &PriceStream{
		manager:   NewWSReconnectManager(wsURL, config, logger),
		logger:    logger,
		callbacks: make(map[string][]func(*Ticker)),
	}
	s.manager.SetOnMessage(s.handleMessage)
	return s
}

// Start устанавливает соединение
func (s *PriceStream) Start() error {
	return s.manager.Connect()
}

// Subscribe подписывается на обновления цены инструмента.
// Подписка переживает переподключение.
func (s *PriceStream) Subscribe(instID string, callback func(*Ticker)) error {
	s.callbacksMu.Lock()
	existing := len(s.callbacks[instID]) > 0
	s.callbacks[instID] = append(s.callbacks[instID], callback)
	s.callbacksMu.Unlock()

	if existing {
		return nil
	}

	msg := wsSubscribeMsg{
		Op:   "subscribe",
		Args: []wsChannel{{Channel: "tickers", InstID: instID}},
	}
	s.manager.AddSubscription(msg)

	if s.manager.IsConnected() {
		return s.manager.Send(msg)
	}
	return nil
}

// IsConnected сообщает состояние соединения
func (s *PriceStream) IsConnected() bool {
	return s.manager.IsConnected()
}

// Close закрывает поток
func (s *PriceStream) Close() error {
	return s.manager.Close()
}

// handleMessage разбирает push-сообщение канала tickers
func (s *PriceStream) handleMessage(raw []byte) {
	var msg struct {
		Arg struct {
			Channel string `json:"channel"`
			InstID  string `json:"instId"`
		} `json:"arg"`
		Data []struct {
			InstID string `json:"instId"`
			Last   string `json:"last"`
			BidPx  string `json:"bidPx"`
			AskPx  string `json:"askPx"`
			TS     string `json:"ts"`
		} `json:"data"`
	}

	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Debug("skip unparsable ws message", zap.Error(err))
		return
	}

	if msg.Arg.Channel != "tickers" || len(msg.Data) == 0 {
		return
	}

	for _, d := range msg.Data {
		ticker := &Ticker{
			InstID:    d.InstID,
			Last:      parseDecimal(d.Last),
			Bid:       parseDecimal(d.BidPx),
			Ask:       parseDecimal(d.AskPx),
			Timestamp: parseMillis(d.TS),
		}
		if ticker.Timestamp.IsZero() {
			ticker.Timestamp = time.Now()
		}

		s.callbacksMu.RLock()
		callbacks := s.callbacks[d.InstID]
		s.callbacksMu.RUnlock()

		for _, cb := range callbacks {
			cb(ticker)
		}
	}
}
