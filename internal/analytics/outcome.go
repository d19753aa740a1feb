package analytics

import (
	"fmt"

	"github.com/claude/freecoach/internal/models"
)

// OutcomeKind enumerates the three session outcomes.
type OutcomeKind uint8

const (
	KindRealized OutcomeKind = iota + 1
	KindMissedWithMakeup
	KindMissedWithoutMakeup
)

func (k OutcomeKind) String() string {
	switch k {
	case KindRealized:
		return models.StatusRealized
	case KindMissedWithMakeup:
		return models.StatusMissedWithMakeup
	case KindMissedWithoutMakeup:
		return models.StatusMissedWithoutMakeup
	default:
		return "unknown"
	}
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	if k < KindRealized || k > KindMissedWithoutMakeup {
		return nil, fmt.Errorf("invalid outcome kind %d", k)
	}
	return []byte(k.String()), nil
}

// ParseOutcomeKind accepts any label known to models.NormalizeSessionStatus.
func ParseOutcomeKind(raw string) (OutcomeKind, bool) {
	canonical, ok := models.NormalizeSessionStatus(raw)
	if !ok {
		return 0, false
	}
	switch canonical {
	case models.StatusRealized:
		return KindRealized, true
	case models.StatusMissedWithMakeup:
		return KindMissedWithMakeup, true
	default:
		return KindMissedWithoutMakeup, true
	}
}

// Outcome is the classified result of a session. Only Realized carries a
// plan reference; the constructors are the only way to build a valid value,
// and the zero Outcome is invalid.
type Outcome struct {
	kind   OutcomeKind
	planID int64
}

// Realized is a session the student trained, attributed to planID.
func Realized(planID int64) Outcome { return Outcome{kind: KindRealized, planID: planID} }

// MissedWithMakeup is an absence that keeps the right to reschedule.
func MissedWithMakeup() Outcome { return Outcome{kind: KindMissedWithMakeup} }

// MissedWithoutMakeup is an absence that is charged as a given lesson.
func MissedWithoutMakeup() Outcome { return Outcome{kind: KindMissedWithoutMakeup} }

func (o Outcome) Kind() OutcomeKind { return o.kind }

// Valid reports whether o was built by one of the constructors.
func (o Outcome) Valid() bool { return o.kind >= KindRealized && o.kind <= KindMissedWithoutMakeup }

// PlanID returns the plan the session is attributed to. ok is false for
// both missed outcomes.
func (o Outcome) PlanID() (id int64, ok bool) {
	if o.kind != KindRealized {
		return 0, false
	}
	return o.planID, true
}

// ContributesVolume reports whether the session adds training volume.
func (o Outcome) ContributesVolume() bool { return o.kind == KindRealized }

// ConsumesCredit reports whether the session spends a package lesson.
func (o Outcome) ConsumesCredit() bool {
	return o.kind == KindRealized || o.kind == KindMissedWithoutMakeup
}

func (o Outcome) String() string { return o.kind.String() }

// Classify maps a raw session to its Outcome. A realized session without a
// plan reference and a missed session carrying one are integrity violations;
// they are reported, never coerced.
func Classify(s models.Session) (Outcome, error) {
	if s.Realized {
		if s.PlanID == nil {
			return Outcome{}, &IntegrityError{SessionID: s.ID, At: s.Time.Time, Reason: "realized session has no plan reference"}
		}
		return Realized(*s.PlanID), nil
	}
	if s.PlanID != nil {
		return Outcome{}, &IntegrityError{SessionID: s.ID, At: s.Time.Time, PlanID: s.PlanID, Reason: "missed session carries a plan reference"}
	}
	if s.NeedsMakeup {
		return MissedWithMakeup(), nil
	}
	return MissedWithoutMakeup(), nil
}
