package extsource

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// parsePEMCertificate decodes a single PEM-encoded X.509 certificate block.
func parsePEMCertificate(pemData string) (*x509.Certificate, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("extsource: no PEM block found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("extsource: parse certificate: %w", err)
	}
	return cert, nil
}
