package trading

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// SwitchResult описывает исход переключения провайдера.
// UserMessage и Recommendation предназначены для UI, ErrorType -
// машиночитаемый код для клиентов API.
type SwitchResult struct {
	Success        bool         `json:"success"`
	Provider       ProviderType `json:"provider"`
	ErrorType      string       `json:"error_type,omitempty"`
	Message        string       `json:"message,omitempty"`
	UserMessage    string       `json:"user_message,omitempty"`
	Recommendation string       `json:"recommendation,omitempty"`
}

// Коды ошибок переключения
const (
	switchErrUnsupported  = "UNSUPPORTED_PROVIDER"
	switchErrNotConnected = "PROVIDER_NOT_CONNECTED"
	switchErrNotReady     = "PROVIDER_NOT_READY"
)

// Factory хранит зарегистрированные провайдеры и текущий активный.
// Переключение атомарно: активный провайдер меняется только после
// успешной проверки подключения кандидата.
type Factory struct {
	mu        sync.RWMutex
	providers map[ProviderType]Provider
	current   Provider
	logger    *zap.Logger
}

// NewFactory создает фабрику с виртуальным провайдером по умолчанию
func NewFactory(virtual Provider, logger *zap.Logger) *Factory {
	f := &Factory{
		providers: map[ProviderType]Provider{
			ProviderVirtual: virtual,
		},
		current: virtual,
		logger:  logger,
	}
	UpdateActiveProvider(ProviderVirtual)
	return f
}

// Register добавляет провайдер в фабрику. Повторная регистрация
// заменяет предыдущий экземпляр того же типа.
func (f *Factory) Register(p Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[p.Type()] = p
}

// Current возвращает активный провайдер
func (f *Factory) Current() Provider {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// CurrentType возвращает тип активного провайдера
func (f *Factory) CurrentType() ProviderType {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current.Type()
}

// SwitchTo переключает активный провайдер. Кандидат должен быть
// зарегистрирован и подключен, иначе активный провайдер не меняется.
func (f *Factory) SwitchTo(providerType ProviderType) (*SwitchResult, error) {
	if providerType == ProviderThreeCommas {
		return &SwitchResult{
			Success:        false,
			Provider:       providerType,
			ErrorType:      switchErrUnsupported,
			Message:        "THREE_COMMAS provider is declared but not implemented",
			UserMessage:    "Провайдер 3Commas не поддерживается",
			Recommendation: "Используйте VIRTUAL или OKX",
		}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, providerType)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	candidate, ok := f.providers[providerType]
	if !ok {
		return &SwitchResult{
			Success:        false,
			Provider:       providerType,
			ErrorType:      switchErrNotReady,
			Message:        fmt.Sprintf("provider %s is not registered", providerType),
			UserMessage:    fmt.Sprintf("Провайдер %s не настроен", providerType),
			Recommendation: "Проверьте ключи API в конфигурации",
		}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, providerType)
	}

	if !candidate.IsConnected() {
		return &SwitchResult{
			Success:        false,
			Provider:       providerType,
			ErrorType:      switchErrNotConnected,
			Message:        fmt.Sprintf("provider %s failed connectivity check", providerType),
			UserMessage:    fmt.Sprintf("Нет соединения с провайдером %s", providerType),
			Recommendation: "Проверьте ключи API и доступность биржи",
		}, fmt.Errorf("%w: %s", ErrProviderNotConnected, providerType)
	}

	f.current = candidate
	UpdateActiveProvider(providerType)
	f.logger.Info("trading provider switched", zap.String("provider", string(providerType)))

	return &SwitchResult{
		Success:  true,
		Provider: providerType,
	}, nil
}

// SafeSwitchTo переключает провайдер, при неудаче откатываясь на
// виртуальный. Виртуальный провайдер зарегистрирован всегда, поэтому
// откат не может не сработать.
func (f *Factory) SafeSwitchTo(providerType ProviderType) *SwitchResult {
	result, err := f.SwitchTo(providerType)
	if err == nil {
		return result
	}

	f.logger.Warn("provider switch failed, falling back to virtual",
		zap.String("requested", string(providerType)),
		zap.Error(err),
	)

	f.mu.Lock()
	f.current = f.providers[ProviderVirtual]
	f.mu.Unlock()
	UpdateActiveProvider(ProviderVirtual)

	result.Recommendation = "Переключено на виртуальный провайдер"
	return result
}
