package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestPriceStreamHandleTickerPush(t *testing.T) {
	s := NewPriceStream("wss://unused", DefaultWSReconnectConfig(), zap.NewNop())

	var got *Ticker
	if err := s.Subscribe("AVAX-USDT-SWAP", func(ticker *Ticker) {
		got = ticker
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	s.handleMessage([]byte(`{
		"arg": {"channel": "tickers", "instId": "AVAX-USDT-SWAP"},
		"data": [{"instId": "AVAX-USDT-SWAP", "last": "10.31", "bidPx": "10.30", "askPx": "10.32", "ts": "1700000000000"}]
	}`))

	if got == nil {
		t.Fatal("callback not invoked")
	}
	if !got.Last.Equal(decimal.NewFromFloat(10.31)) {
		t.Errorf("expected last 10.31, got %s", got.Last)
	}
}

func TestPriceStreamIgnoresOtherChannels(t *testing.T) {
	s := NewPriceStream("wss://unused", DefaultWSReconnectConfig(), zap.NewNop())

	invoked := false
	if err := s.Subscribe("AVAX-USDT-SWAP", func(*Ticker) { invoked = true }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Подтверждение подписки не содержит данных
	s.handleMessage([]byte(`{"event": "subscribe", "arg": {"channel": "tickers", "instId": "AVAX-USDT-SWAP"}}`))
	// Другой канал
	s.handleMessage([]byte(`{"arg": {"channel": "books", "instId": "AVAX-USDT-SWAP"}, "data": [{}]}`))
	// Мусор
	s.handleMessage([]byte(`not json`))

	if invoked {
		t.Error("callback must not fire for non-ticker messages")
	}
}

func TestPriceStreamUnsubscribedInstrument(t *testing.T) {
	s := NewPriceStream("wss://unused", DefaultWSReconnectConfig(), zap.NewNop())

	invoked := false
	if err := s.Subscribe("AVAX-USDT-SWAP", func(*Ticker) { invoked = true }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	s.handleMessage([]byte(`{
		"arg": {"channel": "tickers", "instId": "SOL-USDT-SWAP"},
		"data": [{"instId": "SOL-USDT-SWAP", "last": "33.3", "bidPx": "33.2", "askPx": "33.4", "ts": "1700000000000"}]
	}`))

	if invoked {
		t.Error("callback must not fire for other instruments")
	}
}
