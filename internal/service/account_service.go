package service

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"statarb/internal/models"
	"statarb/internal/repository"
)

// Ошибки сервиса учетных данных
var (
	ErrInvalidCredentials = errors.New("invalid API credentials")
	ErrConnectionFailed   = errors.New("failed to connect to exchange")
	ErrAccountNotFound    = errors.New("exchange account not found")
)

// exchangeConnector проверяет учетные данные тестовым подключением
type exchangeConnector interface {
	Connect(apiKey, secretKey, passphrase string) error
}

// AccountService управляет учетными данными биржи. Ключи хранятся
// зашифрованными (этим занимается репозиторий), наружу отдаются
// только маскированные значения.
type AccountService struct {
	accountRepo *repository.AccountRepository
	connector   exchangeConnector
	logger      *zap.Logger
}

// NewAccountService создает сервис учетных данных
func NewAccountService(accountRepo *repository.AccountRepository, connector exchangeConnector, logger *zap.Logger) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		connector:   connector,
		logger:      logger,
	}
}

// SaveCredentials валидирует ключи тестовым подключением и сохраняет их
func (s *AccountService) SaveCredentials(exchange, apiKey, secretKey, passphrase string) error {
	exchange = strings.ToLower(exchange)
	if apiKey == "" || secretKey == "" || passphrase == "" {
		return ErrInvalidCredentials
	}

	if err := s.connector.Connect(apiKey, secretKey, passphrase); err != nil {
		s.logger.Warn("credentials validation failed",
			zap.String("exchange", exchange),
			zap.Error(err),
		)
		return errors.Join(ErrConnectionFailed, err)
	}

	account := &models.ExchangeAccount{
		Exchange:   exchange,
		APIKey:     apiKey,
		SecretKey:  secretKey,
		Passphrase: passphrase,
	}
	if err := s.accountRepo.Upsert(account); err != nil {
		return err
	}

	s.logger.Info("exchange credentials saved", zap.String("exchange", exchange))
	return nil
}

// GetMaskedCredentials возвращает учетные данные с маскированным ключом
func (s *AccountService) GetMaskedCredentials(exchange string) (*models.ExchangeAccount, error) {
	account, err := s.accountRepo.GetByExchange(strings.ToLower(exchange))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	account.APIKey = maskKey(account.APIKey)
	account.SecretKey = ""
	account.Passphrase = ""
	return account, nil
}

// DeleteCredentials удаляет учетные данные биржи
func (s *AccountService) DeleteCredentials(exchange string) error {
	if err := s.accountRepo.Delete(strings.ToLower(exchange)); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}

// maskKey оставляет видимыми первые и последние 4 символа ключа
func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
