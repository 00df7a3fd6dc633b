// Package verify implements the HC1 Health Certificate verification
// pipeline (C7): decoding a "HC1:"-prefixed Base45/zlib/COSE_Sign1 payload
// into a DDCC core data set and checking its signature against the stored
// public keys of the signer's country.
package verify

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/minvws/base45-go/eubase45"
)

// prefix is the literal scheme tag every HC1 payload carries.
const prefix = "HC1:"

// DdccCoreDataSet is the decoded CBOR payload of an HC1 certificate, shaped
// after the Digital Documentation of COVID-19 Certificate core data set
// this service's signer country carries in original_source's
// HC1ValidationResponseDto.
type DdccCoreDataSet struct {
	Vaccination  Vaccination `cbor:"vaccination" json:"vaccination"`
	ResourceType string      `cbor:"resourceType" json:"resource_type"`
	BirthDate    string      `cbor:"birthDate" json:"birth_date"`
	Name         string      `cbor:"name" json:"name"`
	Identifier   string      `cbor:"identifier" json:"identifier"`
	Sex          string      `cbor:"sex" json:"sex"`
	Certificate  Certificate `cbor:"certificate" json:"certificate"`
}

// Vaccination describes a single vaccination event, including the issuing
// country used for signer identification.
type Vaccination struct {
	Date         string     `cbor:"date" json:"date"`
	Dose         uint8      `cbor:"dose" json:"dose"`
	Vaccine      CodeSystem `cbor:"vaccine" json:"vaccine"`
	Country      CodeSystem `cbor:"country" json:"country"`
	MAHolder     CodeSystem `cbor:"maholder" json:"maholder"`
	Lot          string     `cbor:"lot" json:"lot"`
	Centre       string     `cbor:"centre" json:"centre"`
	Brand        CodeSystem `cbor:"brand" json:"brand"`
	Manufacturer CodeSystem `cbor:"manufacturer" json:"manufacturer"`
	ValidFrom    string     `cbor:"validFrom" json:"valid_from"`
	TotalDoses   uint8      `cbor:"totalDoses" json:"total_doses"`
	Practitioner Value      `cbor:"practitioner" json:"practitioner"`
	Disease      CodeSystem `cbor:"disease" json:"disease"`
	NextDose     string     `cbor:"nextDose" json:"next_dose"`
}

// Certificate carries the issuing and identifying metadata of the document.
type Certificate struct {
	HCID    Value      `cbor:"hcid" json:"hcid"`
	Period  string     `cbor:"period,omitempty" json:"period,omitempty"`
	Issuer  Identifier `cbor:"issuer" json:"issuer"`
	Version string     `cbor:"version" json:"version"`
}

// Identifier wraps a single coded value, matching the original's
// issuer.identifier.value nesting.
type Identifier struct {
	Identifier Value `cbor:"identifier" json:"identifier"`
}

// CodeSystem is a (code, system) pair used throughout the vaccination block.
type CodeSystem struct {
	Code   string `cbor:"code" json:"code"`
	System string `cbor:"system" json:"system"`
}

// Value is a bare coded or free-text data point.
type Value struct {
	Value string `cbor:"value" json:"value"`
}

// unprefix strips surrounding whitespace and the "HC1:" scheme tag.
func unprefix(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, prefix) {
		return "", fmt.Errorf("verify: missing %q prefix", prefix)
	}
	return trimmed[len(prefix):], nil
}

// decodeBase45Zlib reverses the Base45(Zlib(...)) encoding layer, returning
// the raw COSE_Sign1 CBOR bytes.
func decodeBase45Zlib(encoded string) ([]byte, error) {
	compressed, err := eubase45.EUBase45Decode([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("invalid base45 encoded message: %w", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("invalid zlib stream: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("invalid zlib stream: %w", err)
	}
	return raw, nil
}

// decodePayload CBOR-decodes the COSE payload into a DdccCoreDataSet and
// checks presence of the fields spec §4.7 decode stage 5 requires. A
// well-formed CBOR map missing one of those fields is still bad input: it
// decodes to zero values rather than erroring out of cbor.Unmarshal, so the
// check must happen separately.
func decodePayload(payload []byte) (*DdccCoreDataSet, error) {
	var data DdccCoreDataSet
	if err := cbor.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode ddcc core data set: %w", err)
	}
	if err := requireFields(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// requireFields enforces the required-field list of spec §4.7 decode stage
// 5: vaccination.vaccine/brand/country.code/dose/date/lot, name,
// certificate.version, certificate.issuer.identifier.value.
func requireFields(data *DdccCoreDataSet) error {
	var missing []string
	if data.Vaccination.Vaccine.Code == "" {
		missing = append(missing, "vaccination.vaccine")
	}
	if data.Vaccination.Brand.Code == "" {
		missing = append(missing, "vaccination.brand")
	}
	if data.Vaccination.Country.Code == "" {
		missing = append(missing, "vaccination.country.code")
	}
	if data.Vaccination.Dose == 0 {
		missing = append(missing, "vaccination.dose")
	}
	if data.Vaccination.Date == "" {
		missing = append(missing, "vaccination.date")
	}
	if data.Vaccination.Lot == "" {
		missing = append(missing, "vaccination.lot")
	}
	if data.Name == "" {
		missing = append(missing, "name")
	}
	if data.Certificate.Version == "" {
		missing = append(missing, "certificate.version")
	}
	if data.Certificate.Issuer.Identifier.Value == "" {
		missing = append(missing, "certificate.issuer.identifier.value")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required field(s): %s", ErrBadInput, strings.Join(missing, ", "))
	}
	return nil
}

// signerCountry reads the signer's country code from vaccination.country.code,
// the field the original validator's get_country_from_hc1_payload reads. It
// reports false when the field is empty; decodePayload already rejects such
// a payload as bad input, since the field is required.
func signerCountry(data *DdccCoreDataSet) (string, bool) {
	code := data.Vaccination.Country.Code
	if code == "" {
		return "", false
	}
	return code, true
}
