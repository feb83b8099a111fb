package service

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"

	"statarb/internal/repository"
	"statarb/pkg/crypto"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

type fakeConnector struct {
	err   error
	calls int
}

func (c *fakeConnector) Connect(apiKey, secretKey, passphrase string) error {
	c.calls++
	return c.err
}

func newTestAccountService(t *testing.T) (*AccountService, sqlmock.Sqlmock, *fakeConnector) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	connector := &fakeConnector{}
	svc := NewAccountService(repository.NewAccountRepository(db, testEncryptionKey), connector, zap.NewNop())
	return svc, mock, connector
}

func TestSaveCredentials(t *testing.T) {
	svc, mock, connector := newTestAccountService(t)

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("okx", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := svc.SaveCredentials("OKX", "key", "secret", "phrase"); err != nil {
		t.Fatalf("SaveCredentials() err = %v", err)
	}
	if connector.calls != 1 {
		t.Errorf("connector calls = %d, want 1", connector.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaveCredentialsEmptyKey(t *testing.T) {
	svc, _, connector := newTestAccountService(t)

	if err := svc.SaveCredentials("okx", "", "secret", "phrase"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if connector.calls != 0 {
		t.Error("connector must not be called for empty credentials")
	}
}

func TestSaveCredentialsConnectFailure(t *testing.T) {
	svc, _, connector := newTestAccountService(t)
	connector.err = errors.New("401 unauthorized")

	err := svc.SaveCredentials("okx", "key", "secret", "phrase")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("err = %v, want ErrConnectionFailed", err)
	}
}

func TestGetMaskedCredentials(t *testing.T) {
	svc, mock, _ := newTestAccountService(t)

	apiKeyEnc, err := crypto.Encrypt("abcd1234efgh5678", testEncryptionKey)
	if err != nil {
		t.Fatal(err)
	}
	secretEnc, _ := crypto.Encrypt("secret", testEncryptionKey)
	phraseEnc, _ := crypto.Encrypt("phrase", testEncryptionKey)

	rows := sqlmock.NewRows([]string{"id", "exchange", "api_key_enc", "secret_key_enc", "passphrase_enc", "created_at", "updated_at"}).
		AddRow(int64(1), "okx", apiKeyEnc, secretEnc, phraseEnc, time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM accounts").WithArgs("okx").WillReturnRows(rows)

	account, err := svc.GetMaskedCredentials("okx")
	if err != nil {
		t.Fatalf("GetMaskedCredentials() err = %v", err)
	}
	if account.APIKey != "abcd********5678" {
		t.Errorf("masked key = %q", account.APIKey)
	}
	if account.SecretKey != "" || account.Passphrase != "" {
		t.Error("secret and passphrase must never leave the service")
	}
}

func TestGetMaskedCredentialsNotFound(t *testing.T) {
	svc, mock, _ := newTestAccountService(t)

	mock.ExpectQuery("SELECT (.+) FROM accounts").
		WithArgs("okx").
		WillReturnRows(sqlmock.NewRows([]string{"id", "exchange", "api_key_enc", "secret_key_enc", "passphrase_enc", "created_at", "updated_at"}))

	if _, err := svc.GetMaskedCredentials("okx"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
}
