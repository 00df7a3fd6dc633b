package verify

import (
	"bytes"
	"compress/zlib"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"database/sql"
	"encoding/json"
	"log"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fxamacker/cbor/v2"
	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
	"github.com/minvws/base45-go/eubase45"
	"github.com/veraison/go-cose"

	"github.com/lacchain/trustlist/pkg/registry"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[verify-test] ", 0)
}

// buildHC1 signs payload with priv under ES256, wraps it as COSE_Sign1,
// zlib-compresses, base45-encodes, and prefixes with "HC1:" — the exact
// inverse of the decode pipeline under test.
func buildHC1(t *testing.T, payload []byte, priv *ecdsa.PrivateKey) string {
	t.Helper()

	signer, err := cose.NewSigner(cose.AlgorithmES256, priv)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmES256)
	msg.Payload = payload

	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		t.Fatalf("sign: %v", err)
	}

	coseBytes, err := msg.MarshalCBOR()
	if err != nil {
		t.Fatalf("marshal cose: %v", err)
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(coseBytes); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}

	encoded, err := eubase45.EUBase45Encode(compressed.Bytes())
	if err != nil {
		t.Fatalf("base45 encode: %v", err)
	}

	return "HC1:" + string(encoded)
}

func testVaccinationPayload(t *testing.T, country string) []byte {
	t.Helper()
	data := DdccCoreDataSet{
		Name:         "Jane Doe",
		ResourceType: "Patient",
		Vaccination: Vaccination{
			Country: CodeSystem{Code: country, System: "ISO3166-1"},
			Vaccine: CodeSystem{Code: "J07BX03", System: "whoatc"},
			Brand:   CodeSystem{Code: "BNT162b2", System: "whoatc"},
			Dose:    1,
			Date:    "2021-06-01",
			Lot:     "LOT-1",
		},
		Certificate: Certificate{
			Version: "1.0",
			Issuer:  Identifier{Identifier: Value{Value: "issuer-1"}},
		},
	}
	raw, err := cbor.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func testCertAndJWK(t *testing.T) (*x509.Certificate, *ecdsa.PrivateKey, []byte) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "issuer"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	jwk := jose.JSONWebKey{Key: &priv.PublicKey, Certificates: []*x509.Certificate{cert}}
	jwkBytes, err := json.Marshal(jwk)
	if err != nil {
		t.Fatalf("marshal jwk: %v", err)
	}
	return cert, priv, jwkBytes
}

func newVerifierWithKeys(t *testing.T, country, jwkJSON string) (*Verifier, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rows := sqlmock.NewRows([]string{"id", "country_code", "content_hash", "jwk", "exp", "is_compromised", "did_id", "block_number", "url"}).
		AddRow(uuid.New(), country, "deadbeef", []byte(jwkJSON), sql.NullInt64{}, sql.NullBool{}, uuid.NullUUID{}, sql.NullInt64{}, sql.NullString{})
	mock.ExpectQuery("SELECT (.+) FROM public_key WHERE country_code = \\$1").WithArgs(country).WillReturnRows(rows)

	client := registry.NewClientFromDB(db)
	repos := registry.NewRepositories(client)
	return New(repos.PublicKeys, testLogger()), mock
}

func TestVerifyBase45ValidSignatureReturnsIsValidTrue(t *testing.T) {
	cert, priv, jwkJSON := testCertAndJWK(t)
	_ = cert
	payload := testVaccinationPayload(t, "COL")
	hc1 := buildHC1(t, payload, priv)

	verifier, _ := newVerifierWithKeys(t, "COL", string(jwkJSON))

	result, err := verifier.VerifyBase45(context.Background(), hc1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("want is_valid=true")
	}
	if result.DdccCoreDataSet.Vaccination.Country.Code != "COL" {
		t.Fatalf("unexpected payload echoed back: %+v", result.DdccCoreDataSet)
	}
}

func TestVerifyBase45WrongKeyReturnsIsValidFalse(t *testing.T) {
	_, priv, _ := testCertAndJWK(t)
	_, _, otherJWK := testCertAndJWK(t)
	payload := testVaccinationPayload(t, "COL")
	hc1 := buildHC1(t, payload, priv)

	verifier, _ := newVerifierWithKeys(t, "COL", string(otherJWK))

	result, err := verifier.VerifyBase45(context.Background(), hc1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsValid {
		t.Fatalf("want is_valid=false for mismatched key")
	}
}

func TestVerifyBase45UnknownCountryReturnsIsValidFalseNotError(t *testing.T) {
	_, priv, _ := testCertAndJWK(t)
	payload := testVaccinationPayload(t, "ZZZ")
	hc1 := buildHC1(t, payload, priv)

	verifier := New(nil, testLogger())

	result, err := verifier.VerifyBase45(context.Background(), hc1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsValid {
		t.Fatalf("want is_valid=false for unrecognized country")
	}
}

func TestVerifyBase45MissingPrefixIsBadInput(t *testing.T) {
	verifier := New(nil, testLogger())
	_, err := verifier.VerifyBase45(context.Background(), "not-an-hc1-payload")
	if err == nil {
		t.Fatalf("want error for missing HC1 prefix")
	}
}

func TestVerifyBase45MalformedBase45IsBadInput(t *testing.T) {
	verifier := New(nil, testLogger())
	_, err := verifier.VerifyBase45(context.Background(), "HC1:not valid base45!!")
	if err == nil {
		t.Fatalf("want error for malformed base45")
	}
}
