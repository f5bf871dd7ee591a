package ca

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"sync"
	"time"

	"github.com/dualsign/SET-simulator/pkg/depot"
	"github.com/dualsign/SET-simulator/pkg/keys"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// RootValidityDays is the validity of the self-signed root certificate.
const RootValidityDays = 3650

// CertificateAuthority issues, verifies and revokes the certificates of
// every participant. Revocation is tracked twice, on the certificate
// itself and in a separate revoked-serial set, and both are consulted on
// verification.
type CertificateAuthority struct {
	name   string
	keys   *keys.KeyPair
	root   *Certificate
	logger log.Logger

	mu      sync.RWMutex
	issued  map[string]*Certificate
	revoked map[string]struct{}
	store   depot.Depot
}

// New builds an authority around the given signing key, or a freshly
// generated one when kp is nil. The depot receives a mirror of the
// issued index and serves the read-only listings.
func New(name string, kp *keys.KeyPair, store depot.Depot, logger log.Logger) (*CertificateAuthority, error) {
	var err error
	if kp == nil {
		kp, err = keys.Generate()
		if err != nil {
			return nil, err
		}
	}
	a := &CertificateAuthority{
		name:    name,
		keys:    kp,
		logger:  logger,
		issued:  make(map[string]*Certificate),
		revoked: make(map[string]struct{}),
		store:   store,
	}
	root, err := a.Issue(name, kp.Public(), RootValidityDays)
	if err != nil {
		return nil, err
	}
	a.root = root
	level.Info(logger).Log("msg", "Certificate authority initialized", "name", name, "root_serial", root.Serial)
	return a, nil
}

func (a *CertificateAuthority) Name() string { return a.name }

func (a *CertificateAuthority) PublicKey() *rsa.PublicKey { return a.keys.Public() }

// Root returns the self-signed root certificate.
func (a *CertificateAuthority) Root() *Certificate { return a.root }

// Issue allocates a fresh serial, signs the canonical encoding of the
// certificate fields and records the certificate in the issued index.
func (a *CertificateAuthority) Issue(subject string, pub *rsa.PublicKey, validityDays int) (*Certificate, error) {
	now := time.Now()
	cert := &Certificate{
		Serial:    newSerial(),
		Subject:   subject,
		Issuer:    a.name,
		PublicKey: pub,
		NotBefore: now,
		NotAfter:  now.AddDate(0, 0, validityDays),
	}
	sig, err := a.keys.Sign(cert.SigningBytes())
	if err != nil {
		level.Error(a.logger).Log("err", err, "msg", "Could not sign certificate for "+subject)
		return nil, err
	}
	cert.Signature = sig

	a.mu.Lock()
	a.issued[cert.Serial] = cert
	a.mu.Unlock()

	if err := a.store.Insert(&depot.IndexEntry{
		Serial:     cert.Serial,
		Subject:    subject,
		Status:     depot.StatusValid,
		IssueTime:  cert.NotBefore,
		ExpiryTime: cert.NotAfter,
	}); err != nil {
		return nil, err
	}
	level.Info(a.logger).Log("msg", "Certificate issued", "serial", cert.Serial, "subject", subject)
	return cert, nil
}

// Verify applies the validity checks in a fixed order; the first failing
// check determines the reported reason.
func (a *CertificateAuthority) Verify(cert *Certificate) (bool, string) {
	if cert == nil {
		return false, "missing certificate"
	}
	if cert.Revoked {
		return false, "certificate revoked"
	}
	if cert.Expired(time.Now()) {
		return false, "certificate expired"
	}
	a.mu.RLock()
	_, inRevokedSet := a.revoked[cert.Serial]
	a.mu.RUnlock()
	if inRevokedSet {
		// Defense in depth, the flag above normally catches this first.
		return false, "certificate revoked"
	}
	if err := keys.Verify(cert.SigningBytes(), cert.Signature, a.keys.Public()); err != nil {
		return false, "invalid certificate signature"
	}
	return true, ""
}

// Revoke marks the certificate revoked and records its serial in the
// revoked set. Unknown serials are ignored. A revocation is visible to
// every verification issued after Revoke returns.
func (a *CertificateAuthority) Revoke(serial string) error {
	a.mu.Lock()
	cert, ok := a.issued[serial]
	if !ok {
		a.mu.Unlock()
		level.Warn(a.logger).Log("msg", "Revocation requested for unknown serial "+serial)
		return nil
	}
	cert.Revoked = true
	a.revoked[serial] = struct{}{}
	a.mu.Unlock()

	if err := a.store.Revoke(serial, time.Now()); err != nil {
		return err
	}
	level.Info(a.logger).Log("msg", "Certificate revoked", "serial", serial, "subject", cert.Subject)
	return nil
}

// Status describes one issued certificate for the read-only listings.
type Status struct {
	Serial    string    `json:"serial"`
	Subject   string    `json:"subject"`
	Issuer    string    `json:"issuer"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
	Revoked   bool      `json:"revoked"`
	Valid     bool      `json:"valid"`
	Reason    string    `json:"reason,omitempty"`
}

// List joins the depot index with a live verification of each issued
// certificate.
func (a *CertificateAuthority) List() ([]Status, error) {
	entries, err := a.store.List()
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(entries))
	for _, ie := range entries {
		a.mu.RLock()
		cert := a.issued[ie.Serial]
		a.mu.RUnlock()
		st := Status{
			Serial:    ie.Serial,
			Subject:   ie.Subject,
			NotBefore: ie.IssueTime,
			NotAfter:  ie.ExpiryTime,
			Revoked:   ie.Status == depot.StatusRevoked,
		}
		if cert != nil {
			st.Issuer = cert.Issuer
			st.Valid, st.Reason = a.Verify(cert)
			st.Revoked = cert.Revoked
		}
		out = append(out, st)
	}
	return out, nil
}

func newSerial() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
