package extsource

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"database/sql"
	"encoding/json"
	"encoding/pem"
	"log"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/lacchain/trustlist/pkg/registry"
)

func testSelfSignedPEM(t *testing.T) string {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func TestSweepInsertsNewEntries(t *testing.T) {
	certPEM := testSelfSignedPEM(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Entry{
			{URL: "https://issuer.example", Country: "CO", PublicKey: certPEM, ValidUntil: "2030-01-01T00:00:00Z"},
		})
	}))
	defer srv.Close()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM public_key WHERE content_hash = \\$1 AND country_code = \\$2 AND did_id IS NULL").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO public_key").WillReturnResult(sqlmock.NewResult(1, 1))

	w := New(srv.URL, registry.NewRepositories(registry.NewClientFromDB(db)), log.New(os.Stderr, "[extsource-test] ", 0))
	if err := w.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
}

func TestProcessEntryRejectsInvalidCountry(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	w := New("http://example.invalid", registry.NewRepositories(registry.NewClientFromDB(db)), log.New(os.Stderr, "[extsource-test] ", 0))
	err = w.processEntry(context.Background(), Entry{Country: "ZZ", PublicKey: testSelfSignedPEM(t)})
	if err == nil {
		t.Fatal("expected invalid country code error")
	}
}

func TestParsePEMCertificateRejectsGarbage(t *testing.T) {
	if _, err := parsePEMCertificate("not a pem"); err == nil {
		t.Fatal("expected error for non-PEM input")
	}
}
