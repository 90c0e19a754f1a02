package tracking

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mygros-backend/pkg/errors"
)

// Policy selects how strictly status changes follow the step sequence.
type Policy string

const (
	PolicyStrict     Policy = Policy(config.TrackingPolicyStrict)
	PolicyPermissive Policy = Policy(config.TrackingPolicyPermissive)
)

// forward is the strict transition table: one step at a time.
var forward = map[enums.TrackingStatus]enums.TrackingStatus{
	enums.TrackingStatusPending:        enums.TrackingStatusConfirmed,
	enums.TrackingStatusConfirmed:      enums.TrackingStatusPreparing,
	enums.TrackingStatusPreparing:      enums.TrackingStatusOutForDelivery,
	enums.TrackingStatusOutForDelivery: enums.TrackingStatusDelivered,
}

// Machine decides whether a tracking status change is allowed.
type Machine struct {
	policy        Policy
	adminOverride bool
}

func NewMachine(cfg config.TrackingConfig) (*Machine, error) {
	policy := Policy(strings.ToLower(strings.TrimSpace(cfg.Policy)))
	if policy == "" {
		policy = PolicyStrict
	}
	if policy != PolicyStrict && policy != PolicyPermissive {
		return nil, fmt.Errorf("unknown tracking policy %q", cfg.Policy)
	}
	return &Machine{policy: policy, adminOverride: cfg.AdminOverride}, nil
}

func (m *Machine) Policy() Policy {
	return m.policy
}

// Next returns the strict successor of from, if any.
func Next(from enums.TrackingStatus) (enums.TrackingStatus, bool) {
	to, ok := forward[from]
	return to, ok
}

// Check returns an INVALID_TRANSITION error when role may not move a
// delivery from one status to another.
func (m *Machine) Check(from, to enums.TrackingStatus, role enums.Role) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown tracking status").
			WithDetails(map[string]any{"status": to})
	}
	if from.IsTerminal() {
		return transitionError(from, to, "delivery already completed")
	}
	if from == to {
		return transitionError(from, to, "delivery already in this status")
	}
	// both policies keep pending as the entry state and delivered as the
	// exit state; the order mirror has no way back out of delivered.
	if to == enums.TrackingStatusPending {
		return transitionError(from, to, "pending is only the initial status")
	}

	switch {
	case m.policy == PolicyPermissive:
		return nil
	case role.IsBackOffice() && m.adminOverride:
		return nil
	}
	if next, ok := forward[from]; ok && next == to {
		return nil
	}
	return transitionError(from, to, "status must advance one step at a time")
}

func transitionError(from, to enums.TrackingStatus, msg string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, msg).
		WithDetails(map[string]any{"from": from, "to": to})
}
