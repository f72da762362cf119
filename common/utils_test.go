package common

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/stretchr/testify/assert"
)

func TestGnarkCurveIDFactory(t *testing.T) {
	for name, expected := range map[string]ecc.ID{
		"bn254":     ecc.BN254,
		"BN254":     ecc.BN254,
		" bn254 ":   ecc.BN254,
		"bls12_381": ecc.BLS12_381,
		"BLS12_377": ecc.BLS12_377,
		"bw6_761":   ecc.BW6_761,
		"secp256k1": ecc.UNKNOWN,
		"":          ecc.UNKNOWN,
	} {
		curve := name
		assert.Equal(t, expected, GnarkCurveIDFactory(&curve), name)
	}

	assert.Equal(t, ecc.UNKNOWN, GnarkCurveIDFactory(nil))
}

func TestNormalizeAccount(t *testing.T) {
	assert.Equal(t, "0xalice", NormalizeAccount("  0xAlice "))
	assert.Equal(t, "", NormalizeAccount("   "))
}
