package policy

import "github.com/guidemeet/backend/internal/models"

// Reconciliation is the result of pairing two attendance claims.
type Reconciliation struct {
	// Waiting is set while the counterpart has not reported.
	Waiting bool
	Status  string
	// Settle is nil when money stays frozen.
	Settle *Instruction
}

// Reconcile pairs the reporter's outcome with the counterpart's. The table
// is symmetric so the order of reports never changes the result.
func Reconcile(self, other string) Reconciliation {
	if other == models.AttendancePending || other == "" {
		return Reconciliation{Waiting: true}
	}
	switch {
	case self == models.AttendanceConfirmed && other == models.AttendanceConfirmed:
		in := Release()
		return Reconciliation{Status: models.BookingStatusCompleted, Settle: &in}
	case self == models.AttendanceNoShow && other == models.AttendanceNoShow:
		in := RefundFull()
		return Reconciliation{Status: models.BookingStatusNoShowBoth, Settle: &in}
	default:
		return Reconciliation{Status: models.BookingStatusDisputed}
	}
}
