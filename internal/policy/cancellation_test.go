package policy

import (
	"testing"
	"time"

	"github.com/guidemeet/backend/internal/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteCancellation(t *testing.T) {
	const (
		total    = int64(10000)
		earnings = int64(7500)
	)

	tests := []struct {
		name         string
		canceler     models.Party
		until        time.Duration
		tier         string
		refund       int64
		compensation int64
	}{
		{"traveler 30h ahead", models.PartyTraveler, 30 * time.Hour, TierFullRefund, 10000, 0},
		{"traveler exactly 24h", models.PartyTraveler, 24 * time.Hour, TierHalfRefund, 5000, 2500},
		{"traveler just over 24h", models.PartyTraveler, 24*time.Hour + time.Second, TierFullRefund, 10000, 0},
		{"traveler 10h ahead", models.PartyTraveler, 10 * time.Hour, TierHalfRefund, 5000, 2500},
		{"traveler exactly 2h", models.PartyTraveler, 2 * time.Hour, TierLate, 0, 7500},
		{"traveler just over 2h", models.PartyTraveler, 2*time.Hour + time.Second, TierHalfRefund, 5000, 2500},
		{"traveler 30m ahead", models.PartyTraveler, 30 * time.Minute, TierLate, 0, 7500},
		{"guide 30h ahead", models.PartyGuide, 30 * time.Hour, TierFullRefund, 10000, 0},
		{"guide 1h ahead", models.PartyGuide, time.Hour, TierFullRefund, 10000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := QuoteCancellation(tt.canceler, tt.until, total, earnings)
			assert.Equal(t, tt.tier, q.Tier)
			assert.Equal(t, tt.refund, q.RefundAmount)
			assert.Equal(t, tt.compensation, q.GuideCompensation)
		})
	}
}

func TestQuoteInstruction(t *testing.T) {
	full := QuoteCancellation(models.PartyTraveler, 48*time.Hour, 11500, 8500)
	assert.Equal(t, RefundFull(), full.Instruction(11500))

	half := QuoteCancellation(models.PartyTraveler, 10*time.Hour, 11500, 8500)
	assert.Equal(t, RefundPartial(5750, 2875), half.Instruction(11500))

	late := QuoteCancellation(models.PartyTraveler, time.Hour, 11500, 8500)
	assert.Equal(t, RefundPartial(0, 8500), late.Instruction(11500))

	assert.Equal(t, RefundFull(), QuoteUnconfirmed(11500).Instruction(11500))
}

// A late cancellation of a $100 bespoke meeting pays the guide exactly what
// a completed meeting would, and the platform keeps the same fee as on
// release.
func TestLateCancellationMatchesRelease(t *testing.T) {
	terms, err := ComputeTerms(10000, 1500)
	require.NoError(t, err)
	late := QuoteCancellation(models.PartyTraveler, 30*time.Minute, terms.TotalPrice, terms.GuideEarnings)
	assert.Equal(t, int64(8500), late.GuideCompensation)

	plan, err := PlanSettlement(late.Instruction(terms.TotalPrice), terms.TotalPrice, terms.GuideEarnings)
	require.NoError(t, err)
	release, err := PlanSettlement(Release(), terms.TotalPrice, terms.GuideEarnings)
	require.NoError(t, err)
	assert.Equal(t, platformShare(release), platformShare(plan))
	assert.Equal(t, int64(3000), platformShare(plan))
}

func platformShare(p Plan) int64 {
	var sum int64
	for _, a := range p.Allocations {
		if a.Kind == models.EntryPlatformFee {
			sum += a.Amount
		}
	}
	return sum
}

// Property: the later the traveler cancels, the smaller the refund, and a
// quote never hands out more than the total.
func TestCancellationRefundMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("refund is non-increasing in lateness", prop.ForAll(
		func(total int64, earlierMin, laterMin int64) bool {
			if earlierMin < laterMin {
				earlierMin, laterMin = laterMin, earlierMin
			}
			earlier := QuoteCancellation(models.PartyTraveler, time.Duration(earlierMin)*time.Minute, total, total*3/4)
			later := QuoteCancellation(models.PartyTraveler, time.Duration(laterMin)*time.Minute, total, total*3/4)
			return earlier.RefundAmount >= later.RefundAmount
		},
		gen.Int64Range(0, 10_000_000),
		gen.Int64Range(-120, 72*60),
		gen.Int64Range(-120, 72*60),
	))

	properties.Property("quote never exceeds total", prop.ForAll(
		func(total, earnings int64, minutes int64, guide bool) bool {
			canceler := models.PartyTraveler
			if guide {
				canceler = models.PartyGuide
			}
			q := QuoteCancellation(canceler, time.Duration(minutes)*time.Minute, total, earnings)
			return q.RefundAmount >= 0 && q.GuideCompensation >= 0 &&
				q.RefundAmount+q.GuideCompensation <= total
		},
		gen.Int64Range(0, 10_000_000),
		gen.Int64Range(-1000, 12_000_000),
		gen.Int64Range(-120, 72*60),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
