package pdsync

import "encoding/json"

// memberData is the JSON shape carried in MemberChanged.rawData. The sync
// worker acts on identificationData only; certificateAuthority and version
// are parsed but not persisted (see SPEC_FULL.md §4.8).
type memberData struct {
	IdentificationData *identificationData `json:"identificationData"`
	CertificateAuthority string            `json:"certificateAuthority"`
	Version              string            `json:"version"`
}

type identificationData struct {
	CountryCode string `json:"countryCode"`
	URL         string `json:"url"`
}

func parseMemberData(raw []byte) (*memberData, error) {
	var md memberData
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, err
	}
	return &md, nil
}
