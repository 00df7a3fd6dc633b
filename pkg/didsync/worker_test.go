package didsync

import (
	"context"
	"database/sql"
	"log"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/lacchain/trustlist/pkg/registry"
)

func testWorker(t *testing.T, db *sql.DB) *Worker {
	t.Helper()
	return &Worker{
		Repos:  registry.NewRepositories(registry.NewClientFromDB(db)),
		Logger: log.New(os.Stderr, "[didsync-test] ", 0),
	}
}

func TestUpsertKeySkipsOnExtractionFailure(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	w := testWorker(t, db)
	didRow := &registry.Did{ID: uuid.New(), DID: "did:lac1:abc"}
	pdMember := &registry.PdMember{CountryCode: "COL"}

	ev := attributeEvent{name: "auth/veriKey/jwk/0", value: []byte(`{}`)}
	if err := w.upsertKey(context.Background(), didRow, pdMember, ev, 100); err != nil {
		t.Fatalf("expected extraction failure to be a logged skip, got %v", err)
	}
}

func TestAcceptAttributeNameAcceptsAssertionJWK(t *testing.T) {
	if !acceptAttributeName("asse/veriKey/jwk/0") {
		t.Fatal("sanity: expected name to be accepted")
	}
}
