package panel

import "context"

// Client is the per-server panel API the engine drives. Implementations
// retry transient failures themselves; a false result or an error is a
// hard failure for the caller.
type Client interface {
	GetAdmins(ctx context.Context, server *Server) ([]Admin, error)
	// GetUsers returns one 1-based page. An empty owner lists every user.
	GetUsers(ctx context.Context, server *Server, page, size int, owner string) ([]User, error)
	ModifyUser(ctx context.Context, server *Server, username string, payload ModifyPayload) (bool, error)
	RemoveUser(ctx context.Context, server *Server, username string) (bool, error)
	GetConfigs(ctx context.Context, server *Server) ([]ServiceConfig, error)
	GetNodes(ctx context.Context, server *Server) ([]Node, error)
}

// ServerRepository gives read access to configured servers
type ServerRepository interface {
	GetServer(ctx context.Context, id string) (*Server, error)
	ListServers(ctx context.Context) ([]*Server, error)
}
