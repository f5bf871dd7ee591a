package ca

import "crypto/rsa"

// Secrets provides the certificate authority signing key from an
// external source.
type Secrets interface {
	GetCAKey() (*rsa.PrivateKey, error)
}
