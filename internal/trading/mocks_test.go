package trading

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"statarb/internal/exchange"
	"statarb/internal/models"
)

// ============ Мок провайдера ============

type mockProvider struct {
	providerType ProviderType
	connected    bool

	portfolio    *models.Portfolio
	portfolioErr error

	prices    map[string]decimal.Decimal
	priceErrs map[string]error

	openLongResult  *models.TradeResult
	openShortResult *models.TradeResult
	closeResults    map[string]*models.TradeResult

	positions map[string]*models.Position
	openList  []*models.Position

	openLongCalls  int
	openShortCalls int
	closeCalls     []string
	priceCalls     []string
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		providerType: ProviderVirtual,
		connected:    true,
		prices:       make(map[string]decimal.Decimal),
		priceErrs:    make(map[string]error),
		closeResults: make(map[string]*models.TradeResult),
		positions:    make(map[string]*models.Position),
	}
}

func (m *mockProvider) Type() ProviderType { return m.providerType }
func (m *mockProvider) IsConnected() bool  { return m.connected }

func (m *mockProvider) GetPortfolio(ctx context.Context) (*models.Portfolio, error) {
	return m.portfolio, m.portfolioErr
}

func (m *mockProvider) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	m.priceCalls = append(m.priceCalls, symbol)
	if err, ok := m.priceErrs[symbol]; ok {
		return decimal.Zero, err
	}
	price, ok := m.prices[symbol]
	if !ok {
		return decimal.Zero, errors.New("no ticker")
	}
	return price, nil
}

func (m *mockProvider) OpenLongPosition(ctx context.Context, pair *models.PairData, settings models.Settings, amount decimal.Decimal) *models.TradeResult {
	m.openLongCalls++
	if m.openLongResult != nil {
		return m.openLongResult
	}
	return models.TradeSuccess("long-1", models.OpOpenLong, pair.LongTicker, amount, decimal.NewFromInt(1), decimal.Zero)
}

func (m *mockProvider) OpenShortPosition(ctx context.Context, pair *models.PairData, settings models.Settings, amount decimal.Decimal) *models.TradeResult {
	m.openShortCalls++
	if m.openShortResult != nil {
		return m.openShortResult
	}
	return models.TradeSuccess("short-1", models.OpOpenShort, pair.ShortTicker, amount, decimal.NewFromInt(1), decimal.Zero)
}

func (m *mockProvider) ClosePosition(ctx context.Context, positionID string) *models.TradeResult {
	m.closeCalls = append(m.closeCalls, positionID)
	if res, ok := m.closeResults[positionID]; ok {
		return res
	}
	return models.TradeSuccess(positionID, models.OpClosePosition, "", decimal.Zero, decimal.Zero, decimal.Zero)
}

func (m *mockProvider) GetPosition(ctx context.Context, positionID string) (*models.Position, error) {
	position, ok := m.positions[positionID]
	if !ok {
		return nil, ErrPositionNotFound
	}
	return position, nil
}

func (m *mockProvider) GetOpenPositions(ctx context.Context) ([]*models.Position, error) {
	return m.openList, nil
}

func (m *mockProvider) UpdateAllPositions(ctx context.Context) error { return nil }

// fixedProviderSource отдает один и тот же провайдер
type fixedProviderSource struct {
	provider Provider
}

func (s *fixedProviderSource) Current() Provider { return s.provider }

// ============ Мок леджера ============

type closeEvent struct {
	pnl  decimal.Decimal
	fees decimal.Decimal
}

type fakeLedger struct {
	portfolio    *models.Portfolio
	portfolioErr error
	reserveErr   error

	reserved   []decimal.Decimal
	released   []decimal.Decimal
	opened     int
	closes     []closeEvent
	unrealized decimal.Decimal
}

func newFakeLedger(available decimal.Decimal) *fakeLedger {
	return &fakeLedger{
		portfolio: &models.Portfolio{
			TotalBalance:     available,
			AvailableBalance: available,
		},
	}
}

func (l *fakeLedger) GetPortfolio(ctx context.Context) (*models.Portfolio, error) {
	return l.portfolio, l.portfolioErr
}

func (l *fakeLedger) GetAvailableBalance(ctx context.Context) (decimal.Decimal, error) {
	if l.portfolioErr != nil {
		return decimal.Zero, l.portfolioErr
	}
	return l.portfolio.AvailableBalance, nil
}

func (l *fakeLedger) ReserveFunds(ctx context.Context, amount decimal.Decimal) error {
	if l.reserveErr != nil {
		return l.reserveErr
	}
	l.reserved = append(l.reserved, amount)
	return nil
}

func (l *fakeLedger) ReleaseFunds(ctx context.Context, amount decimal.Decimal) error {
	l.released = append(l.released, amount)
	return nil
}

func (l *fakeLedger) OnPositionOpened(ctx context.Context) error {
	l.opened++
	return nil
}

func (l *fakeLedger) OnPositionClosed(ctx context.Context, pnl, fees decimal.Decimal) error {
	l.closes = append(l.closes, closeEvent{pnl: pnl, fees: fees})
	return nil
}

func (l *fakeLedger) UpdateUnrealizedPnL(ctx context.Context, pnl decimal.Decimal) error {
	l.unrealized = pnl
	return nil
}

func (l *fakeLedger) InvalidateCache() {}

// ============ Мок хранилища позиций ============

type fakePositionStore struct {
	byID      map[string]*models.Position
	createErr error
	updateErr error

	created []*models.Position
	updated []*models.Position
}

func newFakePositionStore() *fakePositionStore {
	return &fakePositionStore{byID: make(map[string]*models.Position)}
}

func (s *fakePositionStore) Create(p *models.Position) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.byID[p.PositionID] = p
	s.created = append(s.created, p)
	return nil
}

func (s *fakePositionStore) Update(p *models.Position) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.byID[p.PositionID] = p
	s.updated = append(s.updated, p)
	return nil
}

func (s *fakePositionStore) GetByPositionID(positionID string) (*models.Position, error) {
	p, ok := s.byID[positionID]
	if !ok {
		return nil, errors.New("position not found")
	}
	return p, nil
}

func (s *fakePositionStore) GetAllOpen() ([]*models.Position, error) {
	var open []*models.Position
	for _, p := range s.byID {
		if p.IsOpen() {
			open = append(open, p)
		}
	}
	return open, nil
}

// ============ Мок источника цен ============

type fakePriceSource struct {
	prices map[string]decimal.Decimal
	errs   map[string]error
}

func newFakePriceSource() *fakePriceSource {
	return &fakePriceSource{
		prices: make(map[string]decimal.Decimal),
		errs:   make(map[string]error),
	}
}

func (s *fakePriceSource) GetTicker(ctx context.Context, instID string) (*exchange.Ticker, error) {
	if err, ok := s.errs[instID]; ok {
		return nil, err
	}
	price, ok := s.prices[instID]
	if !ok {
		return nil, errors.New("no ticker")
	}
	return &exchange.Ticker{InstID: instID, Last: price, Timestamp: time.Now()}, nil
}
