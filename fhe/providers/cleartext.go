package providers

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"math"
)

const cleartextCiphertextVersion = byte(0x01)
const cleartextCiphertextSize = 9

// CleartextProvider implements CiphertextProvider over plaintext integers; it
// offers no confidentiality and exists so the ledger can be exercised without
// a cryptographic backend
type CleartextProvider struct {
	key []byte
}

// InitCleartextProvider initializes a cleartext provider which accepts the given decryption key
func InitCleartextProvider(key []byte) *CleartextProvider {
	return &CleartextProvider{
		key: key,
	}
}

func (p *CleartextProvider) encode(val uint64) []byte {
	buf := make([]byte, cleartextCiphertextSize)
	buf[0] = cleartextCiphertextVersion
	binary.BigEndian.PutUint64(buf[1:], val)
	return buf
}

func (p *CleartextProvider) decode(ct []byte) (uint64, error) {
	if len(ct) != cleartextCiphertextSize || ct[0] != cleartextCiphertextVersion {
		return 0, fmt.Errorf("%w; expected %d-byte cleartext handle", ErrMalformedCiphertext, cleartextCiphertextSize)
	}
	return binary.BigEndian.Uint64(ct[1:]), nil
}

// Encrypt wraps the given value in a cleartext handle
func (p *CleartextProvider) Encrypt(val uint64) ([]byte, error) {
	return p.encode(val), nil
}

// Add returns a handle for a + b
func (p *CleartextProvider) Add(a, b []byte) ([]byte, error) {
	x, err := p.decode(a)
	if err != nil {
		return nil, err
	}
	y, err := p.decode(b)
	if err != nil {
		return nil, err
	}
	if x > math.MaxUint64-y {
		return nil, fmt.Errorf("%w; addition overflows", ErrPlaintextOutOfBounds)
	}
	return p.encode(x + y), nil
}

// Scale returns a handle for ct * k
func (p *CleartextProvider) Scale(ct []byte, k uint64) ([]byte, error) {
	x, err := p.decode(ct)
	if err != nil {
		return nil, err
	}
	if k != 0 && x > math.MaxUint64/k {
		return nil, fmt.Errorf("%w; scaling overflows", ErrPlaintextOutOfBounds)
	}
	return p.encode(x * k), nil
}

// Decrypt returns the value of the handle if the key matches the configured key
func (p *CleartextProvider) Decrypt(ct, key []byte) (uint64, error) {
	if len(p.key) == 0 || subtle.ConstantTimeCompare(p.key, key) != 1 {
		return 0, ErrInvalidKey
	}
	return p.decode(ct)
}

// Validate returns an error if the handle is malformed
func (p *CleartextProvider) Validate(ct []byte) error {
	_, err := p.decode(ct)
	return err
}
