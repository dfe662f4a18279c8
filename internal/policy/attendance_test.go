package policy

import (
	"testing"

	"github.com/guidemeet/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestReconcile(t *testing.T) {
	release := Release()
	refund := RefundFull()

	tests := []struct {
		name    string
		self    string
		other   string
		waiting bool
		status  string
		settle  *Instruction
	}{
		{"counterpart pending", models.AttendanceConfirmed, models.AttendancePending, true, "", nil},
		{"both confirmed", models.AttendanceConfirmed, models.AttendanceConfirmed, false, models.BookingStatusCompleted, &release},
		{"confirmed vs no-show", models.AttendanceConfirmed, models.AttendanceNoShow, false, models.BookingStatusDisputed, nil},
		{"no-show vs confirmed", models.AttendanceNoShow, models.AttendanceConfirmed, false, models.BookingStatusDisputed, nil},
		{"both no-show", models.AttendanceNoShow, models.AttendanceNoShow, false, models.BookingStatusNoShowBoth, &refund},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.self, tt.other)
			assert.Equal(t, tt.waiting, got.Waiting)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.settle, got.Settle)
		})
	}
}

func TestReconcileIsSymmetric(t *testing.T) {
	outcomes := []string{models.AttendanceConfirmed, models.AttendanceNoShow}
	for _, a := range outcomes {
		for _, b := range outcomes {
			assert.Equal(t, Reconcile(a, b), Reconcile(b, a), "%s/%s", a, b)
		}
	}
}
