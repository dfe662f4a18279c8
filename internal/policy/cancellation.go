package policy

import (
	"time"

	"github.com/guidemeet/backend/internal/models"
)

// Cancellation tiers, by notice given to the guide.
const (
	TierFullRefund = "full_refund" // more than 24h notice, or guide cancels
	TierHalfRefund = "half_refund" // more than 2h, at most 24h
	TierLate       = "late"        // 2h or less
	// TierUnconfirmed covers a booking the guide never confirmed whose
	// start has passed. The traveler gets everything back.
	TierUnconfirmed = "unconfirmed"
)

const (
	fullRefundNotice = 24 * time.Hour
	halfRefundNotice = 2 * time.Hour

	halfRefundBPS       = 5000
	halfCompensationBPS = 2500
)

type CancellationQuote struct {
	Tier              string `json:"tier"`
	RefundAmount      int64  `json:"refund_amount"`
	GuideCompensation int64  `json:"guide_compensation"`
}

// QuoteCancellation splits total between traveler refund and guide
// compensation. A guide cancelling always refunds the traveler in full. A
// late cancellation pays the guide what the meeting itself would have, so
// guideEarnings must be the booking's earnings.
func QuoteCancellation(canceler models.Party, untilMeeting time.Duration, total, guideEarnings int64) CancellationQuote {
	if canceler == models.PartyGuide || untilMeeting > fullRefundNotice {
		return CancellationQuote{Tier: TierFullRefund, RefundAmount: total}
	}
	if untilMeeting > halfRefundNotice {
		return CancellationQuote{
			Tier:              TierHalfRefund,
			RefundAmount:      share(total, halfRefundBPS),
			GuideCompensation: share(total, halfCompensationBPS),
		}
	}
	return CancellationQuote{
		Tier:              TierLate,
		GuideCompensation: min(max(guideEarnings, 0), total),
	}
}

// QuoteUnconfirmed is the quote for withdrawing a booking the guide never
// confirmed.
func QuoteUnconfirmed(total int64) CancellationQuote {
	return CancellationQuote{Tier: TierUnconfirmed, RefundAmount: total}
}

// Instruction turns the quote into the settlement to apply to the escrow.
func (q CancellationQuote) Instruction(total int64) Instruction {
	if q.RefundAmount == total && q.GuideCompensation == 0 {
		return RefundFull()
	}
	return RefundPartial(q.RefundAmount, q.GuideCompensation)
}
