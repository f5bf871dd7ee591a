package entity

import (
	"crypto/rsa"
	"sync"
	"time"

	"github.com/dualsign/SET-simulator/pkg/ca"
	"github.com/dualsign/SET-simulator/pkg/keys"
)

// FreshnessWindow bounds how far a packet timestamp may drift from the
// local clock before the packet is considered stale.
const FreshnessWindow = 300 * time.Second

// Capability bundles the cryptographic abilities every participant
// shares: a keypair, the certificate issued by the CA, and a local
// anti-replay memory. Roles embed it instead of inheriting from a base
// class; the seen-set stays local to each entity, so replay protection
// is enforced redundantly at each hop rather than globally.
type Capability struct {
	keys      *keys.KeyPair
	cert      *ca.Certificate
	authority *ca.CertificateAuthority

	mu   sync.Mutex
	seen map[string]time.Time
}

// New generates a keypair and obtains a certificate for name from the
// authority.
func New(name string, authority *ca.CertificateAuthority, validityDays int) (*Capability, error) {
	kp, err := keys.Generate()
	if err != nil {
		return nil, err
	}
	cert, err := authority.Issue(name, kp.Public(), validityDays)
	if err != nil {
		return nil, err
	}
	return &Capability{
		keys:      kp,
		cert:      cert,
		authority: authority,
		seen:      make(map[string]time.Time),
	}, nil
}

func (c *Capability) Certificate() *ca.Certificate { return c.cert }

func (c *Capability) PublicKey() *rsa.PublicKey { return c.keys.Public() }

func (c *Capability) Sign(data []byte) ([]byte, error) {
	return c.keys.Sign(data)
}

func (c *Capability) Decrypt(ciphertext []byte) ([]byte, error) {
	return c.keys.Decrypt(ciphertext)
}

func (c *Capability) EncryptFor(data []byte, recipient *rsa.PublicKey) ([]byte, error) {
	return keys.Encrypt(data, recipient)
}

// VerifySignature validates cert through the CA first, including
// revocation, and only then checks the signature against the
// certificate's public key. An invalid certificate fails with the CA's
// reason without touching the signature.
func (c *Capability) VerifySignature(data, signature []byte, cert *ca.Certificate) (bool, string) {
	valid, reason := c.authority.Verify(cert)
	if !valid {
		return false, reason
	}
	if err := keys.Verify(data, signature, cert.PublicKey); err != nil {
		return false, "invalid signature"
	}
	return true, ""
}

// CheckFreshness rejects transaction ids this entity has already seen
// and timestamps outside the freshness window.
func (c *Capability) CheckFreshness(transactionID string, timestamp int64) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.evict(now)
	if _, ok := c.seen[transactionID]; ok {
		return false, "replay detected: transaction already processed"
	}
	drift := now.Unix() - timestamp
	if drift < 0 {
		drift = -drift
	}
	if time.Duration(drift)*time.Second > FreshnessWindow {
		return false, "stale timestamp: outside freshness window"
	}
	return true, ""
}

// MarkSeen records a processed transaction id. Ids older than the
// freshness window are evicted on every insert; anything that old
// already fails the timestamp check, so the set stays bounded.
func (c *Capability) MarkSeen(transactionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.evict(now)
	c.seen[transactionID] = now
}

func (c *Capability) evict(now time.Time) {
	for id, at := range c.seen {
		if now.Sub(at) > FreshnessWindow {
			delete(c.seen, id)
		}
	}
}
