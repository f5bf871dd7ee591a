package utils

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
)

const (
	CertPEMBlockType = "CERTIFICATE"
	KeyPEMBlockType  = "RSA PRIVATE KEY"
)

func CheckPEMBlock(pemBlock *pem.Block, blockType string) error {
	if pemBlock == nil {
		return errors.New("cannot find the next PEM formatted block")
	}
	if pemBlock.Type != blockType || len(pemBlock.Headers) != 0 {
		return errors.New("unmatched type of headers")
	}
	return nil
}

// ParseRSAPrivateKeyPEM decodes a PKCS#1 RSA private key from PEM bytes.
func ParseRSAPrivateKeyPEM(keyPEM []byte) (*rsa.PrivateKey, error) {
	pemBlock, _ := pem.Decode(keyPEM)
	if err := CheckPEMBlock(pemBlock, KeyPEMBlockType); err != nil {
		return nil, err
	}
	return x509.ParsePKCS1PrivateKey(pemBlock.Bytes)
}
