package bulk

import (
	"sync"

	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
)

// OperationKey identifies an operation target within a run. ServiceID is
// zero for user deletion.
type OperationKey struct {
	Username  string
	ServiceID int
}

// Operation is one planned change to one user
type Operation struct {
	Key      OperationKey
	Action   Action
	Decision Decision

	subject *userState
}

// userState is the local working copy of a user shared by every operation
// that targets it in a batch. mu serializes those operations so the staged
// service-id set always matches what was last sent to the panel.
type userState struct {
	mu   sync.Mutex
	user panel.User
}

func newUserState(u panel.User) *userState {
	return &userState{user: u.Clone()}
}

// newAssignmentOp plans a service add/remove for the user
func newAssignmentOp(s *userState, serviceID int, action Action) Operation {
	return Operation{
		Key:      OperationKey{Username: s.user.Username, ServiceID: serviceID},
		Action:   action,
		Decision: PlanAssignment(&s.user, serviceID, action),
		subject:  s,
	}
}

// newDeleteOp builds a deletion with a precomputed decision
func newDeleteOp(s *userState, d Decision) Operation {
	return Operation{
		Key:      OperationKey{Username: s.user.Username},
		Action:   ActionDelete,
		Decision: d,
		subject:  s,
	}
}

// stage applies the operation to the working copy and returns the function
// that undoes it. Callers hold s.mu.
func (s *userState) stage(op Operation) func() {
	if !op.Action.IsAssignment() {
		return func() {}
	}
	prev := append([]int(nil), s.user.ServiceIDs...)
	switch op.Action {
	case ActionAdd:
		if !s.user.HasService(op.Key.ServiceID) {
			s.user.ServiceIDs = append(append([]int(nil), prev...), op.Key.ServiceID)
		}
	case ActionRemove:
		next := make([]int, 0, len(prev))
		for _, id := range prev {
			if id != op.Key.ServiceID {
				next = append(next, id)
			}
		}
		s.user.ServiceIDs = next
	}
	return func() { s.user.ServiceIDs = prev }
}
