package registry

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

func TestPublicKeyRepository_FindByHashAndCountry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewPublicKeyRepository(&Client{db: db})

	rows := sqlmock.NewRows([]string{"id", "country_code", "content_hash", "jwk", "exp", "is_compromised", "did_id", "block_number", "url"}).
		AddRow("22222222-2222-2222-2222-222222222222", "CO", "deadbeef", []byte(`{}`), nil, nil, nil, nil, nil)

	mock.ExpectQuery("SELECT (.+) FROM public_key WHERE content_hash = \\$1 AND country_code = \\$2 AND did_id IS NULL").
		WithArgs("deadbeef", "CO").
		WillReturnRows(rows)

	k, err := repo.FindByHashAndCountry(context.Background(), "deadbeef", "CO")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if k.DidIDValid {
		t.Fatalf("expected no did id for http-sourced row")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPublicKeyRepository_FindByHashAndCountryNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewPublicKeyRepository(&Client{db: db})

	mock.ExpectQuery("SELECT (.+) FROM public_key").
		WithArgs("deadbeef", "CO").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.FindByHashAndCountry(context.Background(), "deadbeef", "CO"); err != ErrPublicKeyNotFound {
		t.Fatalf("expected ErrPublicKeyNotFound, got %v", err)
	}
}

func TestPublicKeyRepository_PaginateByPublicDirectoryRejectsPageZero(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewPublicKeyRepository(&Client{db: db})

	if _, _, err := repo.PaginateByPublicDirectory(context.Background(), "0xabc", "1", 0, 10); err != ErrInvalidPage {
		t.Fatalf("expected ErrInvalidPage, got %v", err)
	}
}

func TestPublicKeyRepository_InsertSkipsDidIDWhenAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewPublicKeyRepository(&Client{db: db})

	mock.ExpectExec("INSERT INTO public_key").
		WithArgs(sqlmock.AnyArg(), "CO", "deadbeef", []byte(`{}`), sqlmock.AnyArg(), sqlmock.AnyArg(), uuid.NullUUID{}, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	k, err := repo.Insert(context.Background(), InsertParams{
		CountryCode: "CO",
		ContentHash: "deadbeef",
		JWK:         []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if k.DidIDValid {
		t.Fatalf("expected no did id")
	}
}
