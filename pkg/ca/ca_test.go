package ca

import (
	"bytes"
	"testing"

	"github.com/dualsign/SET-simulator/pkg/depot/inmem"
	"github.com/dualsign/SET-simulator/pkg/keys"

	"github.com/go-kit/kit/log"
)

func setup(t *testing.T) *CertificateAuthority {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := log.NewJSONLogger(buf)

	authority, err := New("TestCA", nil, inmem.NewDepot(logger), logger)
	if err != nil {
		t.Fatal("Unable to create certificate authority")
	}
	return authority
}

func TestIssueAndVerify(t *testing.T) {
	authority := setup(t)
	kp, err := keys.Generate()
	if err != nil {
		t.Fatal("Unable to generate keypair")
	}
	cert, err := authority.Issue("Alice", kp.Public(), 365)
	if err != nil {
		t.Fatal("Unable to issue certificate")
	}
	if cert.Serial == "" {
		t.Error("Issued certificate has no serial")
	}
	if valid, reason := authority.Verify(cert); !valid {
		t.Errorf("Freshly issued certificate is invalid: %s", reason)
	}
}

func TestVerifyMissingCertificate(t *testing.T) {
	authority := setup(t)
	valid, reason := authority.Verify(nil)
	if valid {
		t.Fatal("Nil certificate verified")
	}
	if reason != "missing certificate" {
		t.Errorf("Got reason %q; want %q", reason, "missing certificate")
	}
}

func TestRevokeInvalidatesCertificate(t *testing.T) {
	authority := setup(t)
	kp, err := keys.Generate()
	if err != nil {
		t.Fatal("Unable to generate keypair")
	}
	cert, err := authority.Issue("Bob", kp.Public(), 365)
	if err != nil {
		t.Fatal("Unable to issue certificate")
	}
	if err := authority.Revoke(cert.Serial); err != nil {
		t.Fatalf("Revocation failed: %s", err)
	}
	valid, reason := authority.Verify(cert)
	if valid {
		t.Fatal("Revoked certificate verified")
	}
	if reason != "certificate revoked" {
		t.Errorf("Got reason %q; want %q", reason, "certificate revoked")
	}
}

func TestRevokeUnknownSerial(t *testing.T) {
	authority := setup(t)
	if err := authority.Revoke("ffffffffffffffff"); err != nil {
		t.Errorf("Revoking an unknown serial returned error: %s", err)
	}
}

func TestVerifyRejectsForgedSignature(t *testing.T) {
	authority := setup(t)
	kp, err := keys.Generate()
	if err != nil {
		t.Fatal("Unable to generate keypair")
	}
	cert, err := authority.Issue("Mallory", kp.Public(), 365)
	if err != nil {
		t.Fatal("Unable to issue certificate")
	}

	forged := *cert
	forged.Signature = append([]byte(nil), cert.Signature...)
	forged.Signature[0] ^= 0x01
	valid, reason := authority.Verify(&forged)
	if valid {
		t.Fatal("Certificate with mangled signature verified")
	}
	if reason != "invalid certificate signature" {
		t.Errorf("Got reason %q; want %q", reason, "invalid certificate signature")
	}

	// Changing a covered field must also break the signature.
	renamed := *cert
	renamed.Subject = "NotMallory"
	if valid, _ := authority.Verify(&renamed); valid {
		t.Error("Certificate with altered subject verified")
	}
}

func TestListReflectsRevocation(t *testing.T) {
	authority := setup(t)
	kp, err := keys.Generate()
	if err != nil {
		t.Fatal("Unable to generate keypair")
	}
	cert, err := authority.Issue("Carol", kp.Public(), 365)
	if err != nil {
		t.Fatal("Unable to issue certificate")
	}
	if err := authority.Revoke(cert.Serial); err != nil {
		t.Fatalf("Revocation failed: %s", err)
	}

	statuses, err := authority.List()
	if err != nil {
		t.Fatalf("List failed: %s", err)
	}
	found := false
	for _, st := range statuses {
		if st.Serial != cert.Serial {
			continue
		}
		found = true
		if !st.Revoked {
			t.Error("Listing does not mark the certificate revoked")
		}
		if st.Valid {
			t.Error("Listing reports the revoked certificate as valid")
		}
	}
	if !found {
		t.Errorf("Serial %s missing from listing", cert.Serial)
	}
}
