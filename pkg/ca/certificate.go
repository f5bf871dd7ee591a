package ca

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"time"
)

// Certificate binds a subject name to an RSA public key, signed by the
// issuing authority. Once signed, every field except Revoked is
// immutable; Revoked transitions false to true exactly once.
type Certificate struct {
	Serial    string         `json:"serial"`
	Subject   string         `json:"subject"`
	Issuer    string         `json:"issuer"`
	PublicKey *rsa.PublicKey `json:"-"`
	NotBefore time.Time      `json:"not_before"`
	NotAfter  time.Time      `json:"not_after"`
	Signature []byte         `json:"-"`
	Revoked   bool           `json:"revoked"`
}

// SigningBytes is the canonical encoding the issuer signature covers.
// Field order and formats are fixed; any divergence between issuance
// and verification would break every certificate.
func (c *Certificate) SigningBytes() []byte {
	der := x509.MarshalPKCS1PublicKey(c.PublicKey)
	canonical := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		c.Serial,
		c.Subject,
		c.Issuer,
		base64.StdEncoding.EncodeToString(der),
		c.NotBefore.Unix(),
		c.NotAfter.Unix(),
	)
	return []byte(canonical)
}

// Expired reports whether now falls outside the validity window.
func (c *Certificate) Expired(now time.Time) bool {
	return now.Before(c.NotBefore) || now.After(c.NotAfter)
}
