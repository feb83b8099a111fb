package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"statarb/internal/models"
	"statarb/pkg/crypto"
)

// Ошибки репозитория учетных данных
var ErrAccountNotFound = errors.New("account not found")

// AccountRepository - работа с таблицей accounts.
// API-ключи шифруются AES-256-GCM перед записью и расшифровываются при
// чтении: в базе открытых ключей нет.
type AccountRepository struct {
	db            *sql.DB
	encryptionKey string
}

// NewAccountRepository создает новый экземпляр репозитория
func NewAccountRepository(db *sql.DB, encryptionKey string) *AccountRepository {
	return &AccountRepository{db: db, encryptionKey: encryptionKey}
}

// Upsert сохраняет учетные данные биржи, заменяя существующие
func (r *AccountRepository) Upsert(acc *models.ExchangeAccount) error {
	apiKeyEnc, err := crypto.Encrypt(acc.APIKey, r.encryptionKey)
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}
	secretEnc, err := crypto.Encrypt(acc.SecretKey, r.encryptionKey)
	if err != nil {
		return fmt.Errorf("encrypt secret key: %w", err)
	}
	passphraseEnc, err := crypto.Encrypt(acc.Passphrase, r.encryptionKey)
	if err != nil {
		return fmt.Errorf("encrypt passphrase: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO accounts (exchange, api_key_enc, secret_key_enc, passphrase_enc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (exchange) DO UPDATE
		SET api_key_enc = EXCLUDED.api_key_enc,
			secret_key_enc = EXCLUDED.secret_key_enc,
			passphrase_enc = EXCLUDED.passphrase_enc,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(query, acc.Exchange, apiKeyEnc, secretEnc, passphraseEnc, now, now)
	return err
}

// GetByExchange возвращает расшифрованные учетные данные биржи
func (r *AccountRepository) GetByExchange(exchange string) (*models.ExchangeAccount, error) {
	query := `
		SELECT id, exchange, api_key_enc, secret_key_enc, passphrase_enc, created_at, updated_at
		FROM accounts
		WHERE exchange = $1`

	acc := &models.ExchangeAccount{}
	var apiKeyEnc, secretEnc, passphraseEnc string
	err := r.db.QueryRow(query, exchange).Scan(
		&acc.ID,
		&acc.Exchange,
		&apiKeyEnc,
		&secretEnc,
		&passphraseEnc,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if acc.APIKey, err = crypto.Decrypt(apiKeyEnc, r.encryptionKey); err != nil {
		return nil, fmt.Errorf("decrypt api key: %w", err)
	}
	if acc.SecretKey, err = crypto.Decrypt(secretEnc, r.encryptionKey); err != nil {
		return nil, fmt.Errorf("decrypt secret key: %w", err)
	}
	if acc.Passphrase, err = crypto.Decrypt(passphraseEnc, r.encryptionKey); err != nil {
		return nil, fmt.Errorf("decrypt passphrase: %w", err)
	}

	return acc, nil
}

// Delete удаляет учетные данные биржи
func (r *AccountRepository) Delete(exchange string) error {
	result, err := r.db.Exec(`DELETE FROM accounts WHERE exchange = $1`, exchange)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}
