package plan

import (
	"fmt"
	"strings"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
)

// Status is the annual plan lifecycle state
type Status string

const (
	StatusDraft     Status = "draft"
	StatusApproved  Status = "approved"
	StatusBaselined Status = "baselined"
	StatusCompleted Status = "completed"
)

// validTransitions is the only definition of the plan state machine.
// Transitions are one-directional and never skip a stage.
var validTransitions = map[Status][]Status{
	StatusDraft:     {StatusApproved},
	StatusApproved:  {StatusBaselined},
	StatusBaselined: {StatusCompleted},
	StatusCompleted: {},
}

// AllStatuses lists states in lifecycle order
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusApproved, StatusBaselined, StatusCompleted}
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validTransitions[st]; !ok {
		return "", errors.NewInvalidInputError("INVALID_PLAN_STATUS", fmt.Sprintf("حالة الخطة غير معروفة: %s", s))
	}
	return st, nil
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsFrozen reports whether items under a plan in this state are immutable
func (s Status) IsFrozen() bool {
	return s == StatusBaselined || s == StatusCompleted
}

// CanTransition reports whether from -> to is allowed
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to. A rejected transition returns a
// PreconditionFailed error; re-baselining returns AlreadyBaselined.
func Transition(from, to Status) (Status, error) {
	if CanTransition(from, to) {
		return to, nil
	}
	if from == StatusBaselined && to == StatusBaselined {
		return from, errors.ErrPlanAlreadyBaselined
	}
	return from, errors.ErrInvalidTransition.WithDetails(map[string]any{
		"from": string(from),
		"to":   string(to),
	})
}
