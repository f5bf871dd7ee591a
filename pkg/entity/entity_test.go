package entity

import (
	"bytes"
	"testing"
	"time"

	"github.com/dualsign/SET-simulator/pkg/depot/inmem"
	"github.com/dualsign/SET-simulator/pkg/keys"

	caauthority "github.com/dualsign/SET-simulator/pkg/ca"

	"github.com/go-kit/kit/log"
)

func setup(t *testing.T) (*caauthority.CertificateAuthority, *Capability) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := log.NewJSONLogger(buf)

	authority, err := caauthority.New("TestCA", nil, inmem.NewDepot(logger), logger)
	if err != nil {
		t.Fatal("Unable to create certificate authority")
	}
	cap, err := New("Alice", authority, 365)
	if err != nil {
		t.Fatal("Unable to create capability")
	}
	return authority, cap
}

func TestCheckFreshnessAcceptsCurrentTimestamp(t *testing.T) {
	_, cap := setup(t)
	ok, reason := cap.CheckFreshness("tx-1", time.Now().Unix())
	if !ok {
		t.Errorf("Fresh transaction rejected: %s", reason)
	}
}

func TestCheckFreshnessRejectsReplay(t *testing.T) {
	_, cap := setup(t)
	now := time.Now().Unix()
	if ok, _ := cap.CheckFreshness("tx-1", now); !ok {
		t.Fatal("First presentation rejected")
	}
	cap.MarkSeen("tx-1")
	ok, reason := cap.CheckFreshness("tx-1", now)
	if ok {
		t.Fatal("Replayed transaction id accepted")
	}
	if reason != "replay detected: transaction already processed" {
		t.Errorf("Got reason %q; want replay reason", reason)
	}
}

func TestCheckFreshnessRejectsStaleTimestamp(t *testing.T) {
	_, cap := setup(t)
	testCases := []struct {
		name      string
		timestamp int64
		want      bool
	}{
		{"One hour old", time.Now().Add(-3600 * time.Second).Unix(), false},
		{"One hour ahead", time.Now().Add(3600 * time.Second).Unix(), false},
		{"Inside the window", time.Now().Add(-100 * time.Second).Unix(), true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ok, _ := cap.CheckFreshness("tx-"+tc.name, tc.timestamp)
			if ok != tc.want {
				t.Errorf("Got %v; want %v", ok, tc.want)
			}
		})
	}
}

func TestMarkSeenEvictsExpiredIds(t *testing.T) {
	_, cap := setup(t)
	cap.MarkSeen("tx-old")
	cap.mu.Lock()
	cap.seen["tx-old"] = time.Now().Add(-2 * FreshnessWindow)
	cap.mu.Unlock()

	// Any insert triggers eviction of expired entries.
	cap.MarkSeen("tx-new")

	cap.mu.Lock()
	_, stillThere := cap.seen["tx-old"]
	cap.mu.Unlock()
	if stillThere {
		t.Error("Expired transaction id survived eviction")
	}
}

func TestVerifySignatureChecksCertificateFirst(t *testing.T) {
	authority, cap := setup(t)
	other, err := New("Bob", authority, 365)
	if err != nil {
		t.Fatal("Unable to create second capability")
	}
	data := []byte("payload")
	sig, err := other.Sign(data)
	if err != nil {
		t.Fatal("Unable to sign")
	}

	if valid, reason := cap.VerifySignature(data, sig, other.Certificate()); !valid {
		t.Fatalf("Valid signature rejected: %s", reason)
	}

	if err := authority.Revoke(other.Certificate().Serial); err != nil {
		t.Fatal("Unable to revoke certificate")
	}
	valid, reason := cap.VerifySignature(data, sig, other.Certificate())
	if valid {
		t.Fatal("Signature accepted with a revoked certificate")
	}
	if reason != "certificate revoked" {
		t.Errorf("Got reason %q; want %q", reason, "certificate revoked")
	}
}

func TestVerifySignatureRejectsWrongSigner(t *testing.T) {
	authority, cap := setup(t)
	other, err := New("Bob", authority, 365)
	if err != nil {
		t.Fatal("Unable to create second capability")
	}
	intruder, err := keys.Generate()
	if err != nil {
		t.Fatal("Unable to generate keypair")
	}
	data := []byte("payload")
	sig, err := intruder.Sign(data)
	if err != nil {
		t.Fatal("Unable to sign")
	}
	valid, reason := cap.VerifySignature(data, sig, other.Certificate())
	if valid {
		t.Fatal("Signature from a different key accepted")
	}
	if reason != "invalid signature" {
		t.Errorf("Got reason %q; want %q", reason, "invalid signature")
	}
}
