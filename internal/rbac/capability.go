// Package rbac maps actor roles and account status to workflow capabilities.
// Every service entry point and HTTP route asks these functions rather than
// comparing role strings itself.
package rbac

import "github.com/billtrack/billtrack/internal/shared"

// Capability names an action gated by role and account status.
type Capability string

const (
	CapPropose          Capability = "propose"
	CapApprove          Capability = "approve"
	CapAdopt            Capability = "adopt"
	CapDecideEscalation Capability = "decide_escalation"
	CapDecideAccount    Capability = "decide_account"
	CapRegisterBill     Capability = "register_bill"
	CapRequestRole      Capability = "request_role"
)

var grants = map[Capability][]shared.Role{
	CapPropose:          {shared.RoleUser, shared.RoleSupervisor, shared.RoleAdmin},
	CapApprove:          {shared.RoleSupervisor, shared.RoleAdmin},
	CapAdopt:            {shared.RoleSupervisor},
	CapDecideEscalation: {shared.RoleAdmin},
	CapDecideAccount:    {shared.RoleAdmin},
	CapRegisterBill:     {shared.RoleAdmin},
	CapRequestRole:      {shared.RoleUser, shared.RoleSupervisor, shared.RoleAdmin},
}

// Allows reports whether actor holds capability. Accounts that are not
// active hold no capability at all.
func Allows(actor shared.Actor, capability Capability) bool {
	if !actor.IsActive() {
		return false
	}
	for _, role := range grants[capability] {
		if actor.Role == role {
			return true
		}
	}
	return false
}

// Check returns shared.ErrUnauthorized when actor lacks capability.
func Check(actor shared.Actor, capability Capability) error {
	if Allows(actor, capability) {
		return nil
	}
	return unauthorized{capability: capability, actor: actor}
}

// CanPropose reports whether actor may file a status-change proposal.
func CanPropose(actor shared.Actor) bool { return Allows(actor, CapPropose) }

// CanApprove reports whether actor may approve or reject proposals.
func CanApprove(actor shared.Actor) bool { return Allows(actor, CapApprove) }

// CanAdopt reports whether actor may adopt or drop users.
func CanAdopt(actor shared.Actor) bool { return Allows(actor, CapAdopt) }

// CanDecideEscalation reports whether actor may grant or deny role escalations.
func CanDecideEscalation(actor shared.Actor) bool { return Allows(actor, CapDecideEscalation) }

// CanDecideAccount reports whether actor may activate or deny registrations.
func CanDecideAccount(actor shared.Actor) bool { return Allows(actor, CapDecideAccount) }

// CanRegisterBill reports whether actor may add bills to the registry.
func CanRegisterBill(actor shared.Actor) bool { return Allows(actor, CapRegisterBill) }

type unauthorized struct {
	capability Capability
	actor      shared.Actor
}

func (e unauthorized) Error() string {
	if !e.actor.IsActive() {
		return "unauthorized: account " + string(e.actor.AccountStatus)
	}
	return "unauthorized: role " + string(e.actor.Role) + " cannot " + string(e.capability)
}

func (e unauthorized) Unwrap() error { return shared.ErrUnauthorized }
