package scoring

import (
	"errors"
	"testing"

	"github.com/aquariusluo/creditscore/fhe/providers"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBounds(t *testing.T) {
	assert.NoError(t, Validate(0, 0, 0))
	assert.NoError(t, Validate(MaxIncome, MaxAssets, MaxHistory))
	assert.NoError(t, Validate(150, 500, 85))

	cases := []struct {
		income, assets, history int64
		field                   string
	}{
		{MaxIncome + 1, 0, 0, FieldIncome},
		{-1, 0, 0, FieldIncome},
		{0, MaxAssets + 1, 0, FieldAssets},
		{0, -5, 0, FieldAssets},
		{0, 0, MaxHistory + 1, FieldHistory},
		{0, 0, -1, FieldHistory},
		{MaxIncome + 1, MaxAssets + 1, MaxHistory + 1, FieldIncome},
	}

	for _, c := range cases {
		err := Validate(c.income, c.assets, c.history)
		var rangeErr *RangeError
		require.True(t, errors.As(err, &rangeErr), "expected range error for %v", c)
		assert.Equal(t, c.field, rangeErr.Field)
		assert.False(t, rangeErr.Missing)
	}
}

func TestValidatePresent(t *testing.T) {
	income := int64(150)
	assets := int64(500)
	history := int64(85)
	assert.NoError(t, ValidatePresent(&income, &assets, &history))

	err := ValidatePresent(&income, nil, &history)
	var rangeErr *RangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, FieldAssets, rangeErr.Field)
	assert.True(t, rangeErr.Missing)
	assert.Equal(t, "assets is required", err.Error())

	bad := int64(101)
	err = ValidatePresent(&income, &assets, &bad)
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, FieldHistory, rangeErr.Field)
	assert.Equal(t, "history must be between 0 and 100; got 101", err.Error())
}

func TestValidateFieldUnknown(t *testing.T) {
	err := ValidateField("age", 30)
	assert.Error(t, err)
	var rangeErr *RangeError
	assert.False(t, errors.As(err, &rangeErr))
}

func TestExpectedScore(t *testing.T) {
	assert.Equal(t, uint64(242), Expected(150, 500, 85))
	assert.Equal(t, uint64(0), Expected(0, 0, 0))
	assert.Equal(t, uint64(3500020), Expected(uint64(MaxIncome), uint64(MaxAssets), uint64(MaxHistory)))

	// 50 + 0 + 20 = 70 hundredths
	assert.Equal(t, uint64(0), Expected(1, 0, 1))
}

func TestRating(t *testing.T) {
	assert.Equal(t, RatingExcellent, Rating(750))
	assert.Equal(t, RatingExcellent, Rating(3500020))
	assert.Equal(t, RatingGood, Rating(650))
	assert.Equal(t, RatingGood, Rating(749))
	assert.Equal(t, RatingNeedsImprovement, Rating(649))
	assert.Equal(t, RatingNeedsImprovement, Rating(242))
}

func TestWeightedScoreExample(t *testing.T) {
	p := providers.InitCleartextProvider([]byte("key"))

	income, _ := p.Encrypt(150)
	assets, _ := p.Encrypt(500)
	history, _ := p.Encrypt(85)

	ct, err := WeightedScore(p, income, assets, history)
	require.NoError(t, err)

	weighted, err := p.Decrypt(ct, []byte("key"))
	require.NoError(t, err)
	assert.Equal(t, uint64(24200), weighted)
	assert.Equal(t, uint64(242), Unscale(weighted))
}

func TestWeightedScoreMalformedCiphertext(t *testing.T) {
	p := providers.InitCleartextProvider([]byte("key"))

	income, _ := p.Encrypt(150)
	assets, _ := p.Encrypt(500)

	_, err := WeightedScore(p, income, assets, []byte{0xff})
	assert.True(t, errors.Is(err, providers.ErrMalformedCiphertext))
}

func TestWeightedScoreProperties(t *testing.T) {
	p := providers.InitCleartextProvider([]byte("key"))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("encrypted weighted score matches the plaintext formula", prop.ForAll(
		func(income, assets, history int64) bool {
			if Validate(income, assets, history) != nil {
				return false
			}

			a, _ := p.Encrypt(uint64(income))
			b, _ := p.Encrypt(uint64(assets))
			c, _ := p.Encrypt(uint64(history))

			ct, err := WeightedScore(p, a, b, c)
			if err != nil {
				return false
			}
			weighted, err := p.Decrypt(ct, []byte("key"))
			if err != nil {
				return false
			}

			return Unscale(weighted) == Expected(uint64(income), uint64(assets), uint64(history))
		},
		gen.Int64Range(0, MaxIncome),
		gen.Int64Range(0, MaxAssets),
		gen.Int64Range(0, MaxHistory),
	))

	properties.Property("values above the income bound are rejected with an income range error", prop.ForAll(
		func(income int64) bool {
			var rangeErr *RangeError
			err := Validate(income, 0, 0)
			return errors.As(err, &rangeErr) && rangeErr.Field == FieldIncome
		},
		gen.Int64Range(MaxIncome+1, MaxIncome*1000),
	))

	properties.TestingRun(t)
}
