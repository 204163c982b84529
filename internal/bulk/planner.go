package bulk

import (
	"fmt"

	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
)

// Action is the change an operation makes
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionDelete Action = "delete"
)

// IsAssignment reports whether a is a service-assignment action
func (a Action) IsAssignment() bool {
	return a == ActionAdd || a == ActionRemove
}

// Decision is the planner outcome for one user and target
type Decision int

const (
	Noop Decision = iota
	Apply
)

func (d Decision) String() string {
	if d == Apply {
		return "apply"
	}
	return "noop"
}

// Status filter values
const (
	StatusInactive  = "inactive"
	StatusExpired   = "expired"
	StatusLimited   = "limited"
	StatusDisabled  = "disabled"
	StatusNotActive = "not_active"
	StatusOnHold    = "on_hold"
	StatusActive    = "active"
)

// StatusOption is a selectable cleanup filter
type StatusOption struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

var statusOptions = map[panel.ServerType][]StatusOption{
	panel.ServerTypeMarzneshin: {
		{Value: StatusInactive, Label: "Inactive (Not Activated)"},
		{Value: StatusExpired, Label: "Expired"},
		{Value: StatusLimited, Label: "Limited (Data Limit Reached)"},
		{Value: StatusDisabled, Label: "Disabled"},
		{Value: StatusNotActive, Label: "Not Active"},
	},
	panel.ServerTypeMarzban: {
		{Value: StatusDisabled, Label: "Disabled"},
		{Value: StatusLimited, Label: "Limited"},
		{Value: StatusExpired, Label: "Expired"},
		{Value: StatusOnHold, Label: "On Hold"},
	},
}

// PlanAssignment returns Apply iff adding a missing service or removing a present one
func PlanAssignment(u *panel.User, serviceID int, action Action) Decision {
	has := u.HasService(serviceID)
	switch {
	case action == ActionAdd && !has:
		return Apply
	case action == ActionRemove && has:
		return Apply
	default:
		return Noop
	}
}

// StatusTags derives the cleanup tags of a user for the given panel flavor
func StatusTags(t panel.ServerType, u *panel.User) ([]string, error) {
	switch t {
	case panel.ServerTypeMarzneshin:
		var tags []string
		if !u.Activated {
			tags = append(tags, StatusInactive)
		}
		if u.Expired {
			tags = append(tags, StatusExpired)
		}
		if u.DataLimitReached {
			tags = append(tags, StatusLimited)
		}
		if !u.Enabled {
			tags = append(tags, StatusDisabled)
		}
		if !u.IsActive {
			tags = append(tags, StatusNotActive)
		}
		return tags, nil
	case panel.ServerTypeMarzban:
		if u.Status == "" {
			return nil, nil
		}
		return []string{string(u.Status)}, nil
	default:
		return nil, unsupportedType(t)
	}
}

// PlanCleanup returns Apply iff any of the user's tags is in filters
func PlanCleanup(t panel.ServerType, u *panel.User, filters map[string]struct{}) (Decision, error) {
	tags, err := StatusTags(t, u)
	if err != nil {
		return Noop, err
	}
	for _, tag := range tags {
		if _, ok := filters[tag]; ok {
			return Apply, nil
		}
	}
	return Noop, nil
}

// StatusOptions lists the cleanup filters selectable for a panel flavor
func StatusOptions(t panel.ServerType) ([]StatusOption, error) {
	opts, ok := statusOptions[t]
	if !ok {
		return nil, unsupportedType(t)
	}
	return append([]StatusOption(nil), opts...), nil
}

// ValidateStatusFilters rejects filters the panel flavor never produces
func ValidateStatusFilters(t panel.ServerType, filters []string) error {
	opts, err := StatusOptions(t)
	if err != nil {
		return err
	}
	for _, f := range filters {
		known := false
		for _, o := range opts {
			if o.Value == f {
				known = true
				break
			}
		}
		if !known {
			return errors.BadRequest(fmt.Sprintf("unknown status filter %q for %s", f, t))
		}
	}
	return nil
}

func filterSet(filters []string) map[string]struct{} {
	set := make(map[string]struct{}, len(filters))
	for _, f := range filters {
		set[f] = struct{}{}
	}
	return set
}

func unsupportedType(t panel.ServerType) error {
	return errors.Configuration(fmt.Sprintf("unsupported server type %q", t))
}
