package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"statarb/internal/models"
)

func newTestHub() *Hub {
	return NewHub(zap.NewNop())
}

// registerFakeClient подключает клиента напрямую, без WebSocket апгрейда
func registerFakeClient(hub *Hub) *Client {
	client := &Client{
		hub:  hub,
		send: make(chan []byte, clientSendBufferSize),
	}
	hub.register <- client
	return client
}

func TestNewHub(t *testing.T) {
	hub := newTestHub()

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	client := registerFakeClient(hub)

	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.unregister <- client

	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	// Канал закрывается hub-ом при отмене регистрации
	if _, ok := <-client.send; ok {
		t.Error("send channel must be closed after unregister")
	}
}

func TestHubBroadcastDeliversToAllClients(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	first := registerFakeClient(hub)
	second := registerFakeClient(hub)
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	hub.BroadcastProviderChanged("OKX")

	for _, client := range []*Client{first, second} {
		select {
		case raw := <-client.send:
			var msg ProviderChangedMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("broadcast payload is not valid JSON: %v", err)
			}
			if msg.Type != MessageTypeProviderChanged {
				t.Errorf("type = %q, want %q", msg.Type, MessageTypeProviderChanged)
			}
			if msg.Provider != "OKX" {
				t.Errorf("provider = %q, want OKX", msg.Provider)
			}
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHubRemovesSlowClient(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	client := registerFakeClient(hub)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	// Переполняем буфер клиента, никто его не вычитывает
	for i := 0; i <= clientSendBufferSize; i++ {
		hub.BroadcastProviderChanged("VIRTUAL")
	}

	waitFor(t, func() bool { return hub.ClientCount() == 0 })
	_ = client
}

func TestOriginCheckerCheck(t *testing.T) {
	checker := &OriginChecker{
		allowedOrigins: map[string]struct{}{
			"http://localhost:3000": {},
			"https://example.com":   {},
		},
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true}, // non-browser клиенты
		{"http://localhost:3000", true},
		{"https://example.com", true},
		{"http://evil.com", false},
		{"http://localhost:8080", false},
	}

	for _, tt := range tests {
		if got := checker.Check(tt.origin); got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginCheckerAllowAll(t *testing.T) {
	checker := &OriginChecker{allowAll: true}

	for _, origin := range []string{
		"http://localhost:3000",
		"https://evil.com",
		"http://anything.example.org",
	} {
		if !checker.Check(origin) {
			t.Errorf("allowAll=true but Check(%q) = false", origin)
		}
	}
}

func TestNewPositionUpdateMessageAggregatesPnl(t *testing.T) {
	positions := []*models.Position{
		{PositionID: "long-1", UnrealizedPnL: decimal.NewFromInt(10)},
		{PositionID: "short-1", UnrealizedPnL: decimal.NewFromInt(-3)},
	}

	msg := NewPositionUpdateMessage(positions)

	if msg.Type != MessageTypePositionUpdate {
		t.Errorf("type = %q, want %q", msg.Type, MessageTypePositionUpdate)
	}
	if !msg.UnrealizedPnL.Equal(decimal.NewFromInt(7)) {
		t.Errorf("unrealized pnl = %s, want 7", msg.UnrealizedPnL)
	}
	if len(msg.Positions) != 2 {
		t.Errorf("positions = %d, want 2", len(msg.Positions))
	}
}

func TestHubConcurrentOperations(t *testing.T) {
	hub := newTestHub()
	go hub.Run()

	var wg sync.WaitGroup
	const goroutines = 10
	const operations = 1000

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				hub.Broadcast(map[string]int{"goroutine": id, "op": j})
			}
		}(i)
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				_ = hub.ClientCount()
			}
		}()
	}

	wg.Wait()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func BenchmarkHubBroadcast(b *testing.B) {
	hub := newTestHub()
	go hub.Run()

	client := &Client{hub: hub, send: make(chan []byte, clientSendBufferSize)}
	hub.register <- client
	go func() {
		for range client.send {
		}
	}()

	portfolio := &models.Portfolio{
		TotalBalance:     decimal.NewFromInt(1000),
		AvailableBalance: decimal.NewFromInt(800),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.BroadcastPortfolioUpdate("VIRTUAL", portfolio)
	}
}
