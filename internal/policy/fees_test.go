package policy

import (
	"testing"

	"github.com/guidemeet/backend/internal/apperror"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTerms(t *testing.T) {
	tests := []struct {
		name     string
		base     int64
		bps      int
		fee      int64
		earnings int64
		total    int64
	}{
		{"bespoke $100", 10000, 1500, 1500, 8500, 11500},
		{"tour $100", 10000, 1000, 1000, 9000, 11000},
		{"rounds half up", 5, 1000, 1, 4, 6},
		{"rounds down below half", 4, 1000, 0, 4, 4},
		{"zero fee", 2500, 0, 0, 2500, 2500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms, err := ComputeTerms(tt.base, tt.bps)
			require.NoError(t, err)
			assert.Equal(t, tt.fee, terms.PlatformFee)
			assert.Equal(t, tt.earnings, terms.GuideEarnings)
			assert.Equal(t, tt.total, terms.TotalPrice)
			assert.Equal(t, tt.bps, terms.FeeBPS)
		})
	}
}

func TestComputeTermsRejectsBadInput(t *testing.T) {
	_, err := ComputeTerms(0, 1500)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = ComputeTerms(-100, 1500)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = ComputeTerms(100, 10001)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// Property: earnings + fee == base and total - fee == base for every price.
func TestTermsSplitProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("split always reassembles the base price", prop.ForAll(
		func(base int64, bps int) bool {
			terms, err := ComputeTerms(base, bps)
			if err != nil {
				return false
			}
			return terms.GuideEarnings+terms.PlatformFee == base &&
				terms.TotalPrice-terms.PlatformFee == base &&
				terms.PlatformFee >= 0 && terms.GuideEarnings >= 0
		},
		gen.Int64Range(1, 100_000_000_000),
		gen.IntRange(0, 10000),
	))

	properties.TestingRun(t)
}
