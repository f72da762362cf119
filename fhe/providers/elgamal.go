/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package providers

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/aquariusluo/creditscore/common"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// plaintexts are recovered by baby-step giant-step over [0, elgamalPlaintextBound)
const elgamalPlaintextBound = uint64(1) << 30
const elgamalBabySteps = uint64(1) << 15

const elgamalPointSize = bn254.SizeOfG1AffineCompressed
const elgamalCiphertextSize = elgamalPointSize * 2

var (
	elgamalTable     map[[elgamalPointSize]byte]uint64
	elgamalTableOnce sync.Once
)

// ElGamalProvider implements CiphertextProvider with exponential elgamal over
// the bn254 G1 group; ciphertexts are compressed (C1, C2) point pairs
type ElGamalProvider struct {
	curveID   ecc.ID
	g         bn254.G1Jac
	publicKey bn254.G1Affine
}

// InitElGamalProvider initializes an elgamal provider for the given curve and
// compressed public key
func InitElGamalProvider(curve *string, publicKey []byte) (*ElGamalProvider, error) {
	curveID := common.GnarkCurveIDFactory(curve)
	if curveID != ecc.BN254 {
		name := "<nil>"
		if curve != nil {
			name = *curve
		}
		return nil, fmt.Errorf("failed to initialize elgamal provider; unsupported curve: %s", name)
	}

	if len(publicKey) != elgamalPointSize {
		return nil, fmt.Errorf("failed to initialize elgamal provider; expected %d-byte public key", elgamalPointSize)
	}

	p := &ElGamalProvider{
		curveID: curveID,
	}
	p.g, _, _, _ = bn254.Generators()

	n, err := p.publicKey.SetBytes(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize elgamal provider; invalid public key; %s", err.Error())
	} else if n != elgamalPointSize || p.publicKey.IsInfinity() {
		return nil, fmt.Errorf("failed to initialize elgamal provider; invalid public key")
	}

	return p, nil
}

// GenerateElGamalKeyPair returns a new compressed public key and the
// corresponding secret scalar to be used as the decryption key
func GenerateElGamalKeyPair() (publicKey, decryptionKey []byte, err error) {
	x, err := randomScalar()
	if err != nil {
		return nil, nil, err
	}

	g, _, _, _ := bn254.Generators()
	var pk bn254.G1Jac
	pk.ScalarMultiplication(&g, x)

	var pkAff bn254.G1Affine
	pkAff.FromJacobian(&pk)
	pkBytes := pkAff.Bytes()

	sk := make([]byte, fr.Bytes)
	x.FillBytes(sk)

	return pkBytes[:], sk, nil
}

func randomScalar() (*big.Int, error) {
	for {
		x, err := rand.Int(rand.Reader, fr.Modulus())
		if err != nil {
			return nil, fmt.Errorf("failed to generate random scalar; %s", err.Error())
		}
		if x.Sign() > 0 {
			return x, nil
		}
	}
}

func (p *ElGamalProvider) decode(ct []byte) (*bn254.G1Jac, *bn254.G1Jac, error) {
	if len(ct) != elgamalCiphertextSize {
		return nil, nil, fmt.Errorf("%w; expected %d-byte elgamal ciphertext", ErrMalformedCiphertext, elgamalCiphertextSize)
	}

	var c1, c2 bn254.G1Affine
	if n, err := c1.SetBytes(ct[:elgamalPointSize]); err != nil || n != elgamalPointSize {
		return nil, nil, fmt.Errorf("%w; invalid c1 point", ErrMalformedCiphertext)
	}
	if n, err := c2.SetBytes(ct[elgamalPointSize:]); err != nil || n != elgamalPointSize {
		return nil, nil, fmt.Errorf("%w; invalid c2 point", ErrMalformedCiphertext)
	}

	var j1, j2 bn254.G1Jac
	j1.FromAffine(&c1)
	j2.FromAffine(&c2)
	return &j1, &j2, nil
}

func (p *ElGamalProvider) encode(c1, c2 *bn254.G1Jac) []byte {
	var a1, a2 bn254.G1Affine
	a1.FromJacobian(c1)
	a2.FromJacobian(c2)

	b1 := a1.Bytes()
	b2 := a2.Bytes()

	ct := make([]byte, 0, elgamalCiphertextSize)
	ct = append(ct, b1[:]...)
	return append(ct, b2[:]...)
}

// Encrypt returns (rG, mG + rPK) for a random r
func (p *ElGamalProvider) Encrypt(val uint64) ([]byte, error) {
	if val >= elgamalPlaintextBound {
		return nil, fmt.Errorf("%w; %d exceeds elgamal plaintext bound", ErrPlaintextOutOfBounds, val)
	}

	r, err := randomScalar()
	if err != nil {
		return nil, err
	}

	var c1, c2, shared, pk bn254.G1Jac
	c1.ScalarMultiplication(&p.g, r)

	pk.FromAffine(&p.publicKey)
	shared.ScalarMultiplication(&pk, r)

	c2.ScalarMultiplication(&p.g, new(big.Int).SetUint64(val))
	c2.AddAssign(&shared)

	return p.encode(&c1, &c2), nil
}

// Add returns the component-wise sum of the given ciphertexts
func (p *ElGamalProvider) Add(a, b []byte) ([]byte, error) {
	a1, a2, err := p.decode(a)
	if err != nil {
		return nil, err
	}
	b1, b2, err := p.decode(b)
	if err != nil {
		return nil, err
	}

	a1.AddAssign(b1)
	a2.AddAssign(b2)
	return p.encode(a1, a2), nil
}

// Scale multiplies both ciphertext components by k
func (p *ElGamalProvider) Scale(ct []byte, k uint64) ([]byte, error) {
	c1, c2, err := p.decode(ct)
	if err != nil {
		return nil, err
	}

	scalar := new(big.Int).SetUint64(k)
	c1.ScalarMultiplication(c1, scalar)
	c2.ScalarMultiplication(c2, scalar)
	return p.encode(c1, c2), nil
}

// Decrypt recovers m from C2 - xC1 = mG; the key must be the secret scalar for
// the configured public key
func (p *ElGamalProvider) Decrypt(ct, key []byte) (uint64, error) {
	x, err := p.requireKey(key)
	if err != nil {
		return 0, err
	}

	c1, c2, err := p.decode(ct)
	if err != nil {
		return 0, err
	}

	c1.ScalarMultiplication(c1, x)
	c2.SubAssign(c1)

	return p.discreteLog(c2)
}

// Validate returns an error if the ciphertext does not decode to two curve points
func (p *ElGamalProvider) Validate(ct []byte) error {
	_, _, err := p.decode(ct)
	return err
}

func (p *ElGamalProvider) requireKey(key []byte) (*big.Int, error) {
	if len(key) != fr.Bytes {
		return nil, ErrInvalidKey
	}

	x := new(big.Int).SetBytes(key)
	if x.Sign() == 0 || x.Cmp(fr.Modulus()) >= 0 {
		return nil, ErrInvalidKey
	}

	var pk bn254.G1Jac
	pk.ScalarMultiplication(&p.g, x)

	var pkAff bn254.G1Affine
	pkAff.FromJacobian(&pk)
	if !pkAff.Equal(&p.publicKey) {
		return nil, ErrInvalidKey
	}

	return x, nil
}

// discreteLog solves mG = point for m in [0, elgamalPlaintextBound)
func (p *ElGamalProvider) discreteLog(point *bn254.G1Jac) (uint64, error) {
	elgamalTableOnce.Do(func() {
		elgamalTable = buildElGamalTable(&p.g)
	})

	var giant bn254.G1Jac
	giant.ScalarMultiplication(&p.g, new(big.Int).SetUint64(elgamalBabySteps))
	giant.Neg(&giant)

	var gamma bn254.G1Jac
	gamma.Set(point)

	var aff bn254.G1Affine
	for i := uint64(0); i < elgamalPlaintextBound/elgamalBabySteps; i++ {
		aff.FromJacobian(&gamma)
		if j, ok := elgamalTable[aff.Bytes()]; ok {
			return i*elgamalBabySteps + j, nil
		}
		gamma.AddAssign(&giant)
	}

	return 0, fmt.Errorf("%w; decrypted point is outside the elgamal plaintext bound", ErrPlaintextOutOfBounds)
}

func buildElGamalTable(g *bn254.G1Jac) map[[elgamalPointSize]byte]uint64 {
	table := make(map[[elgamalPointSize]byte]uint64, elgamalBabySteps)

	var acc bn254.G1Jac
	var aff bn254.G1Affine
	for j := uint64(0); j < elgamalBabySteps; j++ {
		aff.FromJacobian(&acc)
		table[aff.Bytes()] = j
		acc.AddAssign(g)
	}

	common.Log.Debugf("built %d-entry elgamal baby-step table", len(table))
	return table
}
