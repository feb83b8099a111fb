package trading

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"statarb/internal/models"
)

func testSettings(maxLong, maxShort int64) models.Settings {
	return models.Settings{
		Leverage:           decimal.NewFromInt(1),
		MaxLongMarginSize:  decimal.NewFromInt(maxLong),
		MaxShortMarginSize: decimal.NewFromInt(maxShort),
	}
}

func TestCalculatePositionSize(t *testing.T) {
	tests := []struct {
		name     string
		provider func() *mockProvider
		settings models.Settings
		want     decimal.Decimal
	}{
		{
			name: "budget below available",
			provider: func() *mockProvider {
				p := newMockProvider()
				p.portfolio = &models.Portfolio{AvailableBalance: decimal.NewFromInt(1000)}
				return p
			},
			settings: testSettings(100, 100),
			want:     decimal.NewFromInt(200),
		},
		{
			name: "available below budget",
			provider: func() *mockProvider {
				p := newMockProvider()
				p.portfolio = &models.Portfolio{AvailableBalance: decimal.NewFromInt(150)}
				return p
			},
			settings: testSettings(100, 100),
			want:     decimal.NewFromInt(150),
		},
		{
			name: "portfolio error gives zero",
			provider: func() *mockProvider {
				p := newMockProvider()
				p.portfolioErr = errors.New("exchange down")
				return p
			},
			settings: testSettings(100, 100),
			want:     decimal.Zero,
		},
		{
			name: "nil portfolio gives zero",
			provider: func() *mockProvider {
				return newMockProvider()
			},
			settings: testSettings(100, 100),
			want:     decimal.Zero,
		},
	}

	svc := NewPositionSizeService(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.CalculatePositionSize(context.Background(), tt.provider(), tt.settings)
			if !got.Equal(tt.want) {
				t.Errorf("CalculatePositionSize() = %s, want %s", got, tt.want)
			}
		})
	}
}
