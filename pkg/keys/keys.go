package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
)

// KeySize is the RSA modulus size used by every participant.
const KeySize = 2048

// KeyPair wraps an RSA private key with the signing and decryption
// operations the payment protocol needs. The public half is shared
// through certificates.
type KeyPair struct {
	private *rsa.PrivateKey
}

func Generate() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeySize)
	if err != nil {
		return nil, err
	}
	return &KeyPair{private: priv}, nil
}

// NewKeyPair wraps an externally provisioned private key, e.g. the CA
// key loaded from a file or from vault.
func NewKeyPair(priv *rsa.PrivateKey) *KeyPair {
	return &KeyPair{private: priv}
}

func (k *KeyPair) Public() *rsa.PublicKey {
	return &k.private.PublicKey
}

// Sign produces a PKCS#1 v1.5 signature over the SHA-256 digest of data.
func (k *KeyPair) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return rsa.SignPKCS1v15(rand.Reader, k.private, crypto.SHA256, digest[:])
}

// Decrypt recovers an OAEP ciphertext produced for this key. It fails
// when the ciphertext was encrypted for a different key or is malformed.
func (k *KeyPair) Decrypt(ciphertext []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, k.private, ciphertext, nil)
}

// Verify checks a PKCS#1 v1.5 signature against the given public key.
func Verify(data, signature []byte, pub *rsa.PublicKey) error {
	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature)
}

// Encrypt encrypts data for the holder of pub using OAEP. The padding is
// randomized, so identical plaintexts yield different ciphertexts.
func Encrypt(data []byte, pub *rsa.PublicKey) ([]byte, error) {
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, data, nil)
}
