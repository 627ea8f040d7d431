package phonetic

import (
	"testing"

	"github.com/originate-data/dirclass/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("lowercases and folds diacritics", func(t *testing.T) {
		assert.Equal(t, "jose", Normalize("José"))
	})

	t.Run("collapses whitespace", func(t *testing.T) {
		assert.Equal(t, "thabo mthembu", Normalize("  Thabo   Mthembu "))
	})

	t.Run("retains hyphens", func(t *testing.T) {
		assert.Equal(t, "anne-marie", Normalize("Anne-Marie"))
	})
}

func TestSoundex(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Robert", "R163"},
		{"Rupert", "R163"},
		{"Ashcraft", "A226"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, soundex(lettersOnly(Normalize(tc.name))))
		})
	}
}

func TestCodesDeterministic(t *testing.T) {
	a := Codes("Bongani")
	b := Codes("Bongani")
	assert.Equal(t, a, b)
}

func TestJaroWinklerIdentical(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Bongani", "Bongani"))
}

func TestJaroWinklerCloseNames(t *testing.T) {
	sim := Similarity("Bonganni", "Bongani")
	require.Greater(t, sim, 0.85)
}

func TestJaroWinklerUnrelatedNames(t *testing.T) {
	sim := Similarity("Bongani", "Zebulon")
	assert.Less(t, sim, 0.7)
}

func TestConsensusAcceptsPhoneticNeighbor(t *testing.T) {
	probe := Codes("Bonganni")
	candidate := Codes("Bongani")

	result := Consensus(probe, Normalize("Bonganni"), candidate, Normalize("Bongani"), 0.85)

	require.True(t, result.Matched)
	assert.GreaterOrEqual(t, result.AgreeingCodes, 2)
	assert.GreaterOrEqual(t, result.Confidence, 0.70)
	assert.LessOrEqual(t, result.Confidence, 0.95)
}

func TestConsensusRejectsUnrelatedName(t *testing.T) {
	probe := Codes("Bongani")
	candidate := Codes("Henrietta")

	result := Consensus(probe, Normalize("Bongani"), candidate, Normalize("Henrietta"), 0.85)

	assert.False(t, result.Matched)
}

func TestConsensusSingleCodeRequiresHigherSimilarity(t *testing.T) {
	// Construct a pair that shares exactly one code but falls short of
	// the single-code similarity bar: the general 2-code path should
	// also fail, so the candidate is rejected.
	probe := model.PhoneticCodes{Soundex: "X100"}
	candidate := model.PhoneticCodes{Soundex: "X100"}

	result := Consensus(probe, "completely-different", candidate, "also-different", 0.85)
	assert.False(t, result.Matched)
}
