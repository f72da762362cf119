package scoring

import (
	"fmt"

	"github.com/aquariusluo/creditscore/fhe/providers"
)

// weights are expressed in hundredths so the encrypted sum stays integral
const (
	IncomeWeight  = uint64(50)
	AssetsWeight  = uint64(30)
	HistoryWeight = uint64(20)
	WeightScale   = uint64(100)
)

const (
	RatingExcellent        = "Excellent"
	RatingGood             = "Good"
	RatingNeedsImprovement = "Needs Improvement"
)

// WeightedScore computes Scale(income, 50) + Scale(assets, 30) + Scale(history, 20)
// over ciphertexts; the result holds the score in hundredths
func WeightedScore(p providers.CiphertextProvider, income, assets, history []byte) ([]byte, error) {
	weighted := make([][]byte, 0, 3)
	for _, term := range []struct {
		ct     []byte
		weight uint64
	}{
		{income, IncomeWeight},
		{assets, AssetsWeight},
		{history, HistoryWeight},
	} {
		ct, err := p.Scale(term.ct, term.weight)
		if err != nil {
			return nil, fmt.Errorf("failed to scale attribute ciphertext; %w", err)
		}
		weighted = append(weighted, ct)
	}

	score, err := p.Add(weighted[0], weighted[1])
	if err != nil {
		return nil, fmt.Errorf("failed to add weighted ciphertexts; %w", err)
	}
	score, err = p.Add(score, weighted[2])
	if err != nil {
		return nil, fmt.Errorf("failed to add weighted ciphertexts; %w", err)
	}
	return score, nil
}

// Unscale converts a decrypted weighted sum to the score, rounding down
func Unscale(weighted uint64) uint64 {
	return weighted / WeightScale
}

// Expected returns the plaintext score for the given attributes
func Expected(income, assets, history uint64) uint64 {
	return Unscale(income*IncomeWeight + assets*AssetsWeight + history*HistoryWeight)
}

// Rating classifies a revealed score
func Rating(score uint64) string {
	switch {
	case score >= 750:
		return RatingExcellent
	case score >= 650:
		return RatingGood
	default:
		return RatingNeedsImprovement
	}
}
