package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/billtrack/billtrack/internal/shared"
)

func actorWith(role shared.Role, status shared.AccountStatus) shared.Actor {
	return shared.Actor{ID: 1, Role: role, AccountStatus: status}
}

func TestCapabilityMatrix(t *testing.T) {
	user := actorWith(shared.RoleUser, shared.AccountActive)
	supervisor := actorWith(shared.RoleSupervisor, shared.AccountActive)
	admin := actorWith(shared.RoleAdmin, shared.AccountActive)

	cases := []struct {
		name string
		can  func(shared.Actor) bool
		want map[shared.Role]bool
	}{
		{"propose", CanPropose, map[shared.Role]bool{shared.RoleUser: true, shared.RoleSupervisor: true, shared.RoleAdmin: true}},
		{"approve", CanApprove, map[shared.Role]bool{shared.RoleSupervisor: true, shared.RoleAdmin: true}},
		{"adopt", CanAdopt, map[shared.Role]bool{shared.RoleSupervisor: true}},
		{"decide escalation", CanDecideEscalation, map[shared.Role]bool{shared.RoleAdmin: true}},
		{"decide account", CanDecideAccount, map[shared.Role]bool{shared.RoleAdmin: true}},
		{"register bill", CanRegisterBill, map[shared.Role]bool{shared.RoleAdmin: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, actor := range []shared.Actor{user, supervisor, admin} {
				require.Equal(t, tc.want[actor.Role], tc.can(actor), "role %s", actor.Role)
			}
		})
	}
}

func TestInactiveAccountsHoldNoCapability(t *testing.T) {
	for _, status := range []shared.AccountStatus{shared.AccountPending, shared.AccountDenied} {
		admin := actorWith(shared.RoleAdmin, status)
		for capability := range grants {
			require.False(t, Allows(admin, capability), "%s %s", status, capability)
		}
	}
}

func TestCheckWrapsUnauthorized(t *testing.T) {
	err := Check(actorWith(shared.RoleUser, shared.AccountActive), CapApprove)
	require.True(t, errors.Is(err, shared.ErrUnauthorized))
	require.Contains(t, err.Error(), "cannot approve")

	err = Check(actorWith(shared.RoleAdmin, shared.AccountPending), CapRegisterBill)
	require.True(t, errors.Is(err, shared.ErrUnauthorized))
	require.Contains(t, err.Error(), "pending")

	require.NoError(t, Check(actorWith(shared.RoleSupervisor, shared.AccountActive), CapAdopt))
}
