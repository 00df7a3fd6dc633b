package registry

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPdMemberRepository_FindByMemberNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewPdMemberRepository(&Client{db: db})
	pdID := newTestUUID()

	mock.ExpectQuery("SELECT (.+) FROM pd_member WHERE public_directory_id = \\$1 AND member_id = \\$2").
		WithArgs(pdID, int64(7)).
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.FindByMember(context.Background(), pdID, 7); err != ErrPdMemberNotFound {
		t.Fatalf("expected ErrPdMemberNotFound, got %v", err)
	}
}

func TestPdMemberRepository_InsertWithoutURL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewPdMemberRepository(&Client{db: db})
	pdID := newTestUUID()

	mock.ExpectExec("INSERT INTO pd_member").
		WithArgs(sqlmock.AnyArg(), int64(7), int64(0), pdID, uint64(100), "CO", sql.NullString{Valid: false}).
		WillReturnResult(sqlmock.NewResult(1, 1))

	m, err := repo.Insert(context.Background(), 7, 0, pdID, 100, "CO", "")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if m.URLValid {
		t.Fatalf("expected no url")
	}
}
