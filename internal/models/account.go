package models

import "time"

// ExchangeAccount - учетные данные API биржи.
// В базе ключи хранятся только в зашифрованном виде.
type ExchangeAccount struct {
	ID         int64  `json:"id" db:"id"`
	Exchange   string `json:"exchange" db:"exchange"`
	APIKey     string `json:"-" db:"api_key_enc"`
	SecretKey  string `json:"-" db:"secret_key_enc"`
	Passphrase string `json:"-" db:"passphrase_enc"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
