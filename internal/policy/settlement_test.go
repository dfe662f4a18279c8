package policy

import (
	"testing"

	"github.com/guidemeet/backend/internal/apperror"
	"github.com/guidemeet/backend/internal/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanRelease(t *testing.T) {
	plan, err := PlanSettlement(Release(), 11500, 8500)
	require.NoError(t, err)

	assert.Equal(t, models.EscrowStatusReleased, plan.EscrowStatus)
	assert.Equal(t, []Allocation{
		{Kind: models.EntryPayout, Recipient: models.PartyGuide, Amount: 8500},
		{Kind: models.EntryPlatformFee, Amount: 3000},
	}, plan.Allocations)
}

func TestPlanRefundFull(t *testing.T) {
	plan, err := PlanSettlement(RefundFull(), 11500, 8500)
	require.NoError(t, err)

	assert.Equal(t, models.EscrowStatusRefunded, plan.EscrowStatus)
	assert.Equal(t, []Allocation{
		{Kind: models.EntryRefund, Recipient: models.PartyTraveler, Amount: 11500},
	}, plan.Allocations)
}

func TestPlanRefundPartial(t *testing.T) {
	plan, err := PlanSettlement(RefundPartial(5000, 2500), 10000, 8500)
	require.NoError(t, err)

	assert.Equal(t, models.EscrowStatusRefundedPartial, plan.EscrowStatus)
	assert.Equal(t, []Allocation{
		{Kind: models.EntryRefund, Recipient: models.PartyTraveler, Amount: 5000},
		{Kind: models.EntryCompensation, Recipient: models.PartyGuide, Amount: 2500},
		{Kind: models.EntryPlatformFee, Amount: 2500},
	}, plan.Allocations)
}

func TestPlanRejectsManufacturedMoney(t *testing.T) {
	_, err := PlanSettlement(RefundPartial(8000, 2500), 10000, 8500)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = PlanSettlement(RefundPartial(-1, 0), 10000, 8500)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = PlanSettlement(Instruction{Kind: "BURN"}, 10000, 8500)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// Property: every accepted plan distributes exactly the held amount.
func TestPlanConservesMoney(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("allocations sum to held", prop.ForAll(
		func(base int64, refundBPS, compBPS int, kind int) bool {
			terms, err := ComputeTerms(base, 1500)
			if err != nil {
				return false
			}
			var in Instruction
			switch kind {
			case 0:
				in = Release()
			case 1:
				in = RefundFull()
			default:
				refund := share(terms.TotalPrice, refundBPS)
				comp := share(terms.TotalPrice, compBPS)
				in = RefundPartial(refund, comp)
			}
			plan, err := PlanSettlement(in, terms.TotalPrice, terms.GuideEarnings)
			if err != nil {
				return in.Kind == InstructionRefundPartial && in.Refund+in.Compensation > terms.TotalPrice
			}
			return plan.Sum() == terms.TotalPrice
		},
		gen.Int64Range(1, 100_000_000),
		gen.IntRange(0, 10000),
		gen.IntRange(0, 10000),
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t)
}
