package visit

import (
	"fmt"
	"time"

	"github.com/medicore/medicore/internal/platform/auth"
)

// Stage is the station a visit is currently parked at.
type Stage string

const (
	StageFrontDesk Stage = "front_desk"
	StageNurse     Stage = "nurse"
	StageDoctor    Stage = "doctor"
	StageLab       Stage = "lab"
	StagePharmacy  Stage = "pharmacy"
	StageBilling   Stage = "billing"
	// StageReturned parks a visit back with the front desk for triage.
	StageReturned Stage = "returned_to_front_desk"
)

// Status of the visit as a whole.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// pipeline is the forward handoff order. The last handoff, from billing,
// completes the visit instead of advancing it.
var pipeline = []Stage{
	StageFrontDesk, StageNurse, StageDoctor, StageLab, StagePharmacy, StageBilling,
}

// StageOrder gives a stable position for timeline sorting. Returned visits
// sort with front_desk.
func StageOrder(s Stage) int {
	if s == StageReturned {
		return 0
	}
	for i, p := range pipeline {
		if p == s {
			return i
		}
	}
	return len(pipeline)
}

// NextStage returns the stage a handoff advances to, or "" when the handoff
// completes the visit. A returned visit re-enters at front_desk.
func NextStage(current Stage) (Stage, bool) {
	if current == StageReturned {
		return StageFrontDesk, true
	}
	for i, s := range pipeline {
		if s != current {
			continue
		}
		if i == len(pipeline)-1 {
			return "", false
		}
		return pipeline[i+1], true
	}
	return "", false
}

// ValidStage reports whether s is a known stage.
func ValidStage(s Stage) bool {
	if s == StageReturned {
		return true
	}
	for _, p := range pipeline {
		if p == s {
			return true
		}
	}
	return false
}

// StageForRole maps a workflow role to the stage it works. Admin and
// manager have no home stage and must pass an explicit stage filter.
func StageForRole(r auth.Role) (Stage, bool) {
	switch r {
	case auth.RoleFrontDesk:
		return StageFrontDesk, true
	case auth.RoleNurse:
		return StageNurse, true
	case auth.RoleDoctor:
		return StageDoctor, true
	case auth.RoleLab:
		return StageLab, true
	case auth.RolePharmacy:
		return StagePharmacy, true
	case auth.RoleBilling:
		return StageBilling, true
	}
	return "", false
}

// FormatVisitNumber renders a per-day sequence value as V{YYMMDD}{0001..}.
func FormatVisitNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("V%s%04d", day.Format("060102"), seq)
}

// VisitSequenceKey is the per-day counter key for visit numbers.
func VisitSequenceKey(day time.Time) string {
	return "visit:V" + day.Format("060102")
}
