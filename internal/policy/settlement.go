package policy

import (
	"github.com/guidemeet/backend/internal/apperror"
	"github.com/guidemeet/backend/internal/models"
)

type InstructionKind string

const (
	InstructionRelease       InstructionKind = "RELEASE"
	InstructionRefundFull    InstructionKind = "REFUND_FULL"
	InstructionRefundPartial InstructionKind = "REFUND_PARTIAL"
)

// Instruction tells the settlement processor where held money goes.
// Refund and Compensation are only read for REFUND_PARTIAL.
type Instruction struct {
	Kind         InstructionKind `json:"kind"`
	Refund       int64           `json:"refund,omitempty"`
	Compensation int64           `json:"compensation,omitempty"`
}

func Release() Instruction    { return Instruction{Kind: InstructionRelease} }
func RefundFull() Instruction { return Instruction{Kind: InstructionRefundFull} }

func RefundPartial(refund, compensation int64) Instruction {
	return Instruction{Kind: InstructionRefundPartial, Refund: refund, Compensation: compensation}
}

// Allocation is one slice of the escrow. Recipient is empty for the platform.
type Allocation struct {
	Kind      string
	Recipient models.Party
	Amount    int64
}

// Plan is the full distribution of one escrow.
type Plan struct {
	EscrowStatus string
	Allocations  []Allocation
}

func (p Plan) Sum() int64 {
	var total int64
	for _, a := range p.Allocations {
		total += a.Amount
	}
	return total
}

// PlanSettlement distributes held (the escrow amount) per the instruction.
// Every plan distributes exactly held; the platform takes whatever is not
// paid to a party.
func PlanSettlement(in Instruction, held, guideEarnings int64) (Plan, error) {
	if held < 0 || guideEarnings < 0 || guideEarnings > held {
		return Plan{}, apperror.Validation("escrow amounts out of range")
	}

	switch in.Kind {
	case InstructionRelease:
		return Plan{
			EscrowStatus: models.EscrowStatusReleased,
			Allocations: compact(
				Allocation{Kind: models.EntryPayout, Recipient: models.PartyGuide, Amount: guideEarnings},
				Allocation{Kind: models.EntryPlatformFee, Amount: held - guideEarnings},
			),
		}, nil

	case InstructionRefundFull:
		return Plan{
			EscrowStatus: models.EscrowStatusRefunded,
			Allocations: compact(
				Allocation{Kind: models.EntryRefund, Recipient: models.PartyTraveler, Amount: held},
			),
		}, nil

	case InstructionRefundPartial:
		if in.Refund < 0 || in.Compensation < 0 {
			return Plan{}, apperror.Validation("refund and compensation must not be negative")
		}
		if in.Refund+in.Compensation > held {
			return Plan{}, apperror.Validation("refund %d plus compensation %d exceeds held %d", in.Refund, in.Compensation, held)
		}
		return Plan{
			EscrowStatus: models.EscrowStatusRefundedPartial,
			Allocations: compact(
				Allocation{Kind: models.EntryRefund, Recipient: models.PartyTraveler, Amount: in.Refund},
				Allocation{Kind: models.EntryCompensation, Recipient: models.PartyGuide, Amount: in.Compensation},
				Allocation{Kind: models.EntryPlatformFee, Amount: held - in.Refund - in.Compensation},
			),
		}, nil
	}
	return Plan{}, apperror.Validation("unknown settlement instruction %q", in.Kind)
}

// compact drops zero allocations.
func compact(all ...Allocation) []Allocation {
	out := make([]Allocation, 0, len(all))
	for _, a := range all {
		if a.Amount > 0 {
			out = append(out, a)
		}
	}
	return out
}
