package panel

import (
	"time"
)

// ServerType identifies the panel flavor behind a server
type ServerType string

const (
	ServerTypeMarzban    ServerType = "marzban"
	ServerTypeMarzneshin ServerType = "marzneshin"
)

// IsValid reports whether t is a supported panel flavor
func (t ServerType) IsValid() bool {
	return t == ServerTypeMarzban || t == ServerTypeMarzneshin
}

// DefaultPageSize is used when a server carries no page-size hint
const DefaultPageSize = 50

// Server is a configured panel instance. Read-only to the engine.
type Server struct {
	ID        string     `json:"id" yaml:"id" validate:"required"`
	Remark    string     `json:"remark" yaml:"remark" validate:"required"`
	Type      ServerType `json:"type" yaml:"type" validate:"required,oneof=marzban marzneshin"`
	Host      string     `json:"host" yaml:"host" validate:"required,url"`
	Username  string     `json:"username" yaml:"username" validate:"required"`
	Password  string     `json:"-" yaml:"password" validate:"required"`
	SizeValue int        `json:"size_value,omitempty" yaml:"size_value" validate:"gte=0,lte=1000"`
}

// PageSize returns the listing page size for the server
func (s *Server) PageSize() int {
	if s.SizeValue > 0 {
		return s.SizeValue
	}
	return DefaultPageSize
}

// ExpireStrategy is the Marzneshin user expiry mode
type ExpireStrategy string

const (
	ExpireNever           ExpireStrategy = "never"
	ExpireFixedDate       ExpireStrategy = "fixed_date"
	ExpireStartOnFirstUse ExpireStrategy = "start_on_first_use"
)

// MarzbanStatus is the single Marzban user status
type MarzbanStatus string

const (
	MarzbanActive   MarzbanStatus = "active"
	MarzbanDisabled MarzbanStatus = "disabled"
	MarzbanLimited  MarzbanStatus = "limited"
	MarzbanExpired  MarzbanStatus = "expired"
	MarzbanOnHold   MarzbanStatus = "on_hold"
)

// User is the panel-neutral user shape. Marzneshin fills the state
// booleans, Marzban fills Status.
type User struct {
	Username   string `json:"username"`
	Owner      string `json:"owner,omitempty"`
	ServiceIDs []int  `json:"service_ids"`

	Activated        bool `json:"activated"`
	Expired          bool `json:"expired"`
	DataLimitReached bool `json:"data_limit_reached"`
	Enabled          bool `json:"enabled"`
	IsActive         bool `json:"is_active"`

	Status MarzbanStatus `json:"status,omitempty"`

	ExpireStrategy         ExpireStrategy `json:"expire_strategy,omitempty"`
	ExpireDate             *time.Time     `json:"expire_date,omitempty"`
	UsageDuration          *int64         `json:"usage_duration,omitempty"`
	DataLimit              *int64         `json:"data_limit,omitempty"`
	DataLimitResetStrategy string         `json:"data_limit_reset_strategy,omitempty"`
	Note                   *string        `json:"note,omitempty"`
	ActivationDeadline     *time.Time     `json:"activation_deadline,omitempty"`
}

// HasService reports whether the user is assigned the service
func (u *User) HasService(id int) bool {
	for _, s := range u.ServiceIDs {
		if s == id {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with u
func (u User) Clone() User {
	u.ServiceIDs = append([]int(nil), u.ServiceIDs...)
	return u
}

// Admin is a panel owner account
type Admin struct {
	Username string `json:"username"`
	IsSudo   bool   `json:"is_sudo"`
}

// ServiceConfig is a named plan (Marzneshin service or Marzban inbound)
type ServiceConfig struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Node is a panel node as reported by the panel
type Node struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Healthy reports whether the node status denotes a working node.
// Disabled nodes are treated as healthy since they are off on purpose.
func (n *Node) Healthy() bool {
	switch n.Status {
	case "healthy", "connected", "disabled":
		return true
	default:
		return false
	}
}

// UserPage is one page of a user listing
type UserPage struct {
	Users []User `json:"items"`
	Page  int    `json:"page"`
	Size  int    `json:"size"`
}
