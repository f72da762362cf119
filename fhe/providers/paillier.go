package providers

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

const paillierMinModulusBits = 256

// PaillierProvider implements CiphertextProvider with the paillier cryptosystem,
// using g = n + 1; ciphertexts are big-endian elements of Z*(n^2) padded to the
// byte length of n^2
type PaillierProvider struct {
	n      *big.Int
	n2     *big.Int
	ctSize int
}

// InitPaillierProvider initializes a paillier provider for the big-endian modulus n
func InitPaillierProvider(publicKey []byte) (*PaillierProvider, error) {
	n := new(big.Int).SetBytes(publicKey)
	if n.BitLen() < paillierMinModulusBits {
		return nil, fmt.Errorf("failed to initialize paillier provider; modulus must be at least %d bits", paillierMinModulusBits)
	}
	if n.Bit(0) == 0 {
		return nil, errors.New("failed to initialize paillier provider; modulus must be odd")
	}

	n2 := new(big.Int).Mul(n, n)
	return &PaillierProvider{
		n:      n,
		n2:     n2,
		ctSize: (n2.BitLen() + 7) / 8,
	}, nil
}

// GeneratePaillierKeyPair returns a new big-endian modulus and the encoded
// (lambda, mu) decryption key
func GeneratePaillierKeyPair(bits int) (publicKey, decryptionKey []byte, err error) {
	if bits < paillierMinModulusBits {
		return nil, nil, fmt.Errorf("paillier modulus must be at least %d bits", paillierMinModulusBits)
	}

	one := big.NewInt(1)
	for {
		p, err := rand.Prime(rand.Reader, bits/2)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate paillier prime; %s", err.Error())
		}
		q, err := rand.Prime(rand.Reader, bits-bits/2)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate paillier prime; %s", err.Error())
		}
		if p.Cmp(q) == 0 {
			continue
		}

		n := new(big.Int).Mul(p, q)
		pm1 := new(big.Int).Sub(p, one)
		qm1 := new(big.Int).Sub(q, one)
		phi := new(big.Int).Mul(pm1, qm1)
		if new(big.Int).GCD(nil, nil, n, phi).Cmp(one) != 0 {
			continue
		}

		lambda := new(big.Int).Div(phi, new(big.Int).GCD(nil, nil, pm1, qm1))
		mu := new(big.Int).ModInverse(lambda, n)
		if mu == nil {
			continue
		}

		return n.Bytes(), encodePaillierKey(lambda, mu), nil
	}
}

func encodePaillierKey(lambda, mu *big.Int) []byte {
	l := lambda.Bytes()
	m := mu.Bytes()

	buf := make([]byte, 4, 4+len(l)+len(m))
	binary.BigEndian.PutUint32(buf, uint32(len(l)))
	buf = append(buf, l...)
	return append(buf, m...)
}

func decodePaillierKey(key []byte) (*big.Int, *big.Int, error) {
	if len(key) < 4 {
		return nil, nil, ErrInvalidKey
	}

	l := int(binary.BigEndian.Uint32(key))
	if l == 0 || len(key) <= 4+l {
		return nil, nil, ErrInvalidKey
	}

	lambda := new(big.Int).SetBytes(key[4 : 4+l])
	mu := new(big.Int).SetBytes(key[4+l:])
	return lambda, mu, nil
}

func (p *PaillierProvider) decode(ct []byte) (*big.Int, error) {
	if len(ct) != p.ctSize {
		return nil, fmt.Errorf("%w; expected %d-byte paillier ciphertext", ErrMalformedCiphertext, p.ctSize)
	}

	c := new(big.Int).SetBytes(ct)
	one := big.NewInt(1)
	if c.Cmp(one) <= 0 || c.Cmp(p.n2) >= 0 {
		return nil, fmt.Errorf("%w; ciphertext out of range", ErrMalformedCiphertext)
	}
	if new(big.Int).GCD(nil, nil, c, p.n2).Cmp(one) != 0 {
		return nil, fmt.Errorf("%w; ciphertext not a unit mod n^2", ErrMalformedCiphertext)
	}
	return c, nil
}

func (p *PaillierProvider) encode(c *big.Int) []byte {
	buf := make([]byte, p.ctSize)
	return c.FillBytes(buf)
}

func (p *PaillierProvider) mulMod(x, y *big.Int) *big.Int {
	z := new(big.Int).Mul(x, y)
	return z.Mod(z, p.n2)
}

func (p *PaillierProvider) encrypt(m *big.Int) (*big.Int, error) {
	one := big.NewInt(1)

	var r *big.Int
	for {
		var err error
		r, err = rand.Int(rand.Reader, p.n)
		if err != nil {
			return nil, fmt.Errorf("failed to generate paillier nonce; %s", err.Error())
		}
		if r.Sign() > 0 && new(big.Int).GCD(nil, nil, r, p.n).Cmp(one) == 0 {
			break
		}
	}

	// (n+1)^m = 1 + mn mod n^2
	gm := new(big.Int).Mul(m, p.n)
	gm.Add(gm, one)
	gm.Mod(gm, p.n2)

	return p.mulMod(gm, new(big.Int).Exp(r, p.n, p.n2)), nil
}

func (p *PaillierProvider) decrypt(c, lambda, mu *big.Int) *big.Int {
	u := new(big.Int).Exp(c, lambda, p.n2)
	u.Sub(u, big.NewInt(1))
	u.Div(u, p.n)
	u.Mul(u, mu)
	return u.Mod(u, p.n)
}

// Encrypt returns (n+1)^m * r^n mod n^2 for a random unit r
func (p *PaillierProvider) Encrypt(val uint64) ([]byte, error) {
	m := new(big.Int).SetUint64(val)
	if m.Cmp(p.n) >= 0 {
		return nil, fmt.Errorf("%w; %d exceeds paillier modulus", ErrPlaintextOutOfBounds, val)
	}

	c, err := p.encrypt(m)
	if err != nil {
		return nil, err
	}
	return p.encode(c), nil
}

// Add multiplies the ciphertexts mod n^2
func (p *PaillierProvider) Add(a, b []byte) ([]byte, error) {
	x, err := p.decode(a)
	if err != nil {
		return nil, err
	}
	y, err := p.decode(b)
	if err != nil {
		return nil, err
	}
	return p.encode(p.mulMod(x, y)), nil
}

// Scale raises the ciphertext to k mod n^2
func (p *PaillierProvider) Scale(ct []byte, k uint64) ([]byte, error) {
	c, err := p.decode(ct)
	if err != nil {
		return nil, err
	}
	if k == 0 {
		// c^0 = 1 is not a valid handle; re-randomize an encryption of zero
		z, err := p.encrypt(big.NewInt(0))
		if err != nil {
			return nil, err
		}
		return p.encode(z), nil
	}
	return p.encode(new(big.Int).Exp(c, new(big.Int).SetUint64(k), p.n2)), nil
}

// Decrypt recovers the plaintext using the encoded (lambda, mu) key
func (p *PaillierProvider) Decrypt(ct, key []byte) (uint64, error) {
	lambda, mu, err := p.requireKey(key)
	if err != nil {
		return 0, err
	}

	c, err := p.decode(ct)
	if err != nil {
		return 0, err
	}

	m := p.decrypt(c, lambda, mu)
	if !m.IsUint64() {
		return 0, fmt.Errorf("%w; decrypted value exceeds 64 bits", ErrPlaintextOutOfBounds)
	}
	return m.Uint64(), nil
}

// Validate returns an error if the ciphertext is not a unit in (1, n^2)
func (p *PaillierProvider) Validate(ct []byte) error {
	_, err := p.decode(ct)
	return err
}

// requireKey round-trips a fresh encryption of one through the key
func (p *PaillierProvider) requireKey(key []byte) (*big.Int, *big.Int, error) {
	lambda, mu, err := decodePaillierKey(key)
	if err != nil {
		return nil, nil, err
	}
	if lambda.Sign() <= 0 || mu.Sign() <= 0 || mu.Cmp(p.n) >= 0 {
		return nil, nil, ErrInvalidKey
	}

	canary, err := p.encrypt(big.NewInt(1))
	if err != nil {
		return nil, nil, err
	}
	if p.decrypt(canary, lambda, mu).Cmp(big.NewInt(1)) != 0 {
		return nil, nil, ErrInvalidKey
	}

	return lambda, mu, nil
}
