package providers

import (
	"errors"
	"fmt"
	"strings"
)

// CiphertextProviderElGamal exponential elgamal ciphertext provider
const CiphertextProviderElGamal = "elgamal"

// CiphertextProviderPaillier paillier ciphertext provider
const CiphertextProviderPaillier = "paillier"

// CiphertextProviderCleartext cleartext ciphertext provider; for tests and local development only
const CiphertextProviderCleartext = "cleartext"

var (
	// ErrInvalidKey is returned when decryption key material does not match the provider
	ErrInvalidKey = errors.New("decryption key rejected by ciphertext provider")

	// ErrMalformedCiphertext is returned when a ciphertext handle cannot be decoded
	ErrMalformedCiphertext = errors.New("malformed ciphertext")

	// ErrPlaintextOutOfBounds is returned when a plaintext exceeds the provider bound
	ErrPlaintextOutOfBounds = errors.New("plaintext out of bounds")
)

// CiphertextProvider provides a common interface to interact with additively
// homomorphic encryption backends; ciphertexts are opaque handles
type CiphertextProvider interface {
	Encrypt(val uint64) ([]byte, error)
	Add(a, b []byte) ([]byte, error)
	Scale(ct []byte, k uint64) ([]byte, error)
	Decrypt(ct, key []byte) (uint64, error)
	Validate(ct []byte) error
}

// ProviderFactory initializes the named ciphertext provider with the given public key material
func ProviderFactory(provider string, curve *string, publicKey []byte) (CiphertextProvider, error) {
	switch strings.ToLower(provider) {
	case CiphertextProviderElGamal:
		p, err := InitElGamalProvider(curve, publicKey)
		if err != nil {
			return nil, err
		}
		return p, nil
	case CiphertextProviderPaillier:
		p, err := InitPaillierProvider(publicKey)
		if err != nil {
			return nil, err
		}
		return p, nil
	case CiphertextProviderCleartext:
		return InitCleartextProvider(publicKey), nil
	default:
		return nil, fmt.Errorf("failed to initialize ciphertext provider; unknown provider: %s", provider)
	}
}
