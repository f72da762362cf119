package providers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bn254Curve() *string {
	curve := "bn254"
	return &curve
}

type providerFixture struct {
	name     string
	provider CiphertextProvider
	key      []byte
	wrongKey []byte
}

func requireFixtures(t *testing.T) []providerFixture {
	pub, sk, err := GenerateElGamalKeyPair()
	require.NoError(t, err)
	_, otherSk, err := GenerateElGamalKeyPair()
	require.NoError(t, err)

	elgamal, err := ProviderFactory(CiphertextProviderElGamal, bn254Curve(), pub)
	require.NoError(t, err)

	n, paillierKey, err := GeneratePaillierKeyPair(512)
	require.NoError(t, err)
	_, otherPaillierKey, err := GeneratePaillierKeyPair(512)
	require.NoError(t, err)

	paillier, err := ProviderFactory(CiphertextProviderPaillier, nil, n)
	require.NoError(t, err)

	cleartext, err := ProviderFactory(CiphertextProviderCleartext, nil, []byte("custody"))
	require.NoError(t, err)

	return []providerFixture{
		{CiphertextProviderElGamal, elgamal, sk, otherSk},
		{CiphertextProviderPaillier, paillier, paillierKey, otherPaillierKey},
		{CiphertextProviderCleartext, cleartext, []byte("custody"), []byte("intruder")},
	}
}

func TestProviderHomomorphism(t *testing.T) {
	for _, f := range requireFixtures(t) {
		t.Run(f.name, func(t *testing.T) {
			income, err := f.provider.Encrypt(150)
			require.NoError(t, err)
			assets, err := f.provider.Encrypt(500)
			require.NoError(t, err)
			history, err := f.provider.Encrypt(85)
			require.NoError(t, err)

			for _, ct := range [][]byte{income, assets, history} {
				assert.NoError(t, f.provider.Validate(ct))
			}

			a, err := f.provider.Scale(income, 50)
			require.NoError(t, err)
			b, err := f.provider.Scale(assets, 30)
			require.NoError(t, err)
			c, err := f.provider.Scale(history, 20)
			require.NoError(t, err)

			sum, err := f.provider.Add(a, b)
			require.NoError(t, err)
			sum, err = f.provider.Add(sum, c)
			require.NoError(t, err)

			val, err := f.provider.Decrypt(sum, f.key)
			require.NoError(t, err)
			assert.Equal(t, uint64(24200), val)
		})
	}
}

func TestProviderDecryptZero(t *testing.T) {
	for _, f := range requireFixtures(t) {
		t.Run(f.name, func(t *testing.T) {
			ct, err := f.provider.Encrypt(0)
			require.NoError(t, err)

			val, err := f.provider.Decrypt(ct, f.key)
			require.NoError(t, err)
			assert.Equal(t, uint64(0), val)

			scaled, err := f.provider.Scale(ct, 0)
			require.NoError(t, err)
			val, err = f.provider.Decrypt(scaled, f.key)
			require.NoError(t, err)
			assert.Equal(t, uint64(0), val)
		})
	}
}

func TestProviderRejectsWrongKey(t *testing.T) {
	for _, f := range requireFixtures(t) {
		t.Run(f.name, func(t *testing.T) {
			ct, err := f.provider.Encrypt(42)
			require.NoError(t, err)

			_, err = f.provider.Decrypt(ct, f.wrongKey)
			assert.True(t, errors.Is(err, ErrInvalidKey))

			_, err = f.provider.Decrypt(ct, nil)
			assert.True(t, errors.Is(err, ErrInvalidKey))
		})
	}
}

func TestProviderRejectsMalformedCiphertext(t *testing.T) {
	for _, f := range requireFixtures(t) {
		t.Run(f.name, func(t *testing.T) {
			ct, err := f.provider.Encrypt(7)
			require.NoError(t, err)

			assert.True(t, errors.Is(f.provider.Validate(ct[:len(ct)-1]), ErrMalformedCiphertext))
			assert.True(t, errors.Is(f.provider.Validate(nil), ErrMalformedCiphertext))

			_, err = f.provider.Add(ct, []byte{0x00})
			assert.True(t, errors.Is(err, ErrMalformedCiphertext))
		})
	}
}

func TestProviderCiphertextsAreRandomized(t *testing.T) {
	for _, f := range requireFixtures(t) {
		if f.name == CiphertextProviderCleartext {
			continue
		}
		t.Run(f.name, func(t *testing.T) {
			a, err := f.provider.Encrypt(1)
			require.NoError(t, err)
			b, err := f.provider.Encrypt(1)
			require.NoError(t, err)
			assert.NotEqual(t, a, b)
		})
	}
}

func TestElGamalDiscreteLogRange(t *testing.T) {
	pub, sk, err := GenerateElGamalKeyPair()
	require.NoError(t, err)

	p, err := InitElGamalProvider(bn254Curve(), pub)
	require.NoError(t, err)

	for _, val := range []uint64{1, elgamalBabySteps - 1, elgamalBabySteps, 1_000_000, 13_700_000} {
		ct, err := p.Encrypt(val)
		require.NoError(t, err)

		decrypted, err := p.Decrypt(ct, sk)
		require.NoError(t, err)
		assert.Equal(t, val, decrypted)
	}

	_, err = p.Encrypt(elgamalPlaintextBound)
	assert.True(t, errors.Is(err, ErrPlaintextOutOfBounds))
}

func TestElGamalInitValidation(t *testing.T) {
	pub, _, err := GenerateElGamalKeyPair()
	require.NoError(t, err)

	unsupported := "bls12_381"
	_, err = InitElGamalProvider(&unsupported, pub)
	assert.Error(t, err)

	_, err = InitElGamalProvider(bn254Curve(), pub[:16])
	assert.Error(t, err)

	unknown := "secp256k1"
	_, err = InitElGamalProvider(&unknown, pub)
	assert.ErrorContains(t, err, "unsupported curve: secp256k1")

	_, err = InitElGamalProvider(nil, pub)
	assert.Error(t, err)

	upper := "BN254"
	p, err := InitElGamalProvider(&upper, pub)
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = ProviderFactory("rot13", nil, pub)
	assert.Error(t, err)
}

func TestPaillierInitValidation(t *testing.T) {
	_, err := InitPaillierProvider([]byte{0x0f})
	assert.Error(t, err)

	_, _, err = GeneratePaillierKeyPair(64)
	assert.Error(t, err)
}

func TestCleartextOverflow(t *testing.T) {
	p := InitCleartextProvider([]byte("custody"))

	max, err := p.Encrypt(^uint64(0))
	require.NoError(t, err)

	_, err = p.Add(max, max)
	assert.True(t, errors.Is(err, ErrPlaintextOutOfBounds))

	_, err = p.Scale(max, 2)
	assert.True(t, errors.Is(err, ErrPlaintextOutOfBounds))
}
