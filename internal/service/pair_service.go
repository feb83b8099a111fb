// Package service содержит бизнес-логику над репозиториями: валидацию
// торговых пар и управление биржевыми учетными данными.
package service

import (
	"errors"
	"strings"

	"statarb/internal/models"
	"statarb/internal/repository"
	"statarb/internal/trading"
)

// Ошибки сервиса пар
var (
	ErrPairNotFound        = errors.New("pair not found")
	ErrPairAlreadyExists   = errors.New("pair with this name already exists")
	ErrInvalidTicker       = errors.New("invalid ticker format")
	ErrSameTickers         = errors.New("long and short tickers must differ")
	ErrPairHasOpenPosition = errors.New("cannot delete pair with open positions")
	ErrMaxPairsReached     = errors.New("maximum number of pairs reached")
)

// MaxPairs - максимальное количество пар в работе
const MaxPairs = 30

// PairTracker отвечает, открыта ли пара у координатора
type PairTracker interface {
	Get(pairID int64) (trading.PairPositions, bool)
}

// PairService - валидация и CRUD торговых пар
type PairService struct {
	pairRepo *repository.PairRepository
	tracker  PairTracker
}

// NewPairService создает сервис пар
func NewPairService(pairRepo *repository.PairRepository, tracker PairTracker) *PairService {
	return &PairService{
		pairRepo: pairRepo,
		tracker:  tracker,
	}
}

// CreatePair валидирует и сохраняет новую пару
func (s *PairService) CreatePair(pair *models.PairData) error {
	if err := validateTicker(pair.LongTicker); err != nil {
		return err
	}
	if err := validateTicker(pair.ShortTicker); err != nil {
		return err
	}
	if pair.LongTicker == pair.ShortTicker {
		return ErrSameTickers
	}

	if pair.PairName == "" {
		pair.PairName = pair.LongTicker + " / " + pair.ShortTicker
	}

	existing, err := s.pairRepo.GetAll()
	if err != nil {
		return err
	}
	if len(existing) >= MaxPairs {
		return ErrMaxPairsReached
	}

	if err := s.pairRepo.Create(pair); err != nil {
		if errors.Is(err, repository.ErrPairExists) {
			return ErrPairAlreadyExists
		}
		return err
	}
	return nil
}

// GetPair возвращает пару по id
func (s *PairService) GetPair(id int64) (*models.PairData, error) {
	pair, err := s.pairRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrPairNotFound) {
			return nil, ErrPairNotFound
		}
		return nil, err
	}
	return pair, nil
}

// GetAllPairs возвращает все пары
func (s *PairService) GetAllPairs() ([]*models.PairData, error) {
	return s.pairRepo.GetAll()
}

// DeletePair удаляет пару. Пара с открытыми позициями не удаляется.
func (s *PairService) DeletePair(id int64) error {
	if _, open := s.tracker.Get(id); open {
		return ErrPairHasOpenPosition
	}

	if err := s.pairRepo.Delete(id); err != nil {
		if errors.Is(err, repository.ErrPairNotFound) {
			return ErrPairNotFound
		}
		return err
	}
	return nil
}

// validateTicker проверяет формат инструмента OKX: "ADA-USDT-SWAP"
func validateTicker(ticker string) error {
	if ticker == "" {
		return ErrInvalidTicker
	}
	if ticker != strings.ToUpper(ticker) {
		return ErrInvalidTicker
	}
	parts := strings.Split(ticker, "-")
	if len(parts) < 2 {
		return ErrInvalidTicker
	}
	for _, part := range parts {
		if part == "" {
			return ErrInvalidTicker
		}
	}
	return nil
}
