package bulk

import (
	"context"

	"github.com/pratik-mahalle/panelbot/internal/domain/panel"
	"github.com/pratik-mahalle/panelbot/internal/pkg/errors"
)

// AllAdmins is the pseudo-admin that lists users regardless of owner
const AllAdmins = "ALL"

// maxPages stops a panel that ignores the page parameter from looping forever
const maxPages = 100000

// Pager walks an admin's user listing page by page
type Pager struct {
	client panel.Client
}

// NewPager creates a pager over client
func NewPager(client panel.Client) *Pager {
	return &Pager{client: client}
}

// Walk fetches 1-based pages for admin until an empty page, calling fn with
// the users not yet in seen. seen is updated as users are yielded so a later
// admin in the same run never sees them again. Fetch failures are returned
// as pagination errors without retrying.
func (p *Pager) Walk(ctx context.Context, server *panel.Server, admin string, seen map[string]struct{}, fn func(users []panel.User) error) error {
	owner := admin
	if admin == AllAdmins {
		owner = ""
	}
	size := server.PageSize()

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		users, err := p.client.GetUsers(ctx, server, page, size, owner)
		if err != nil {
			return errors.PaginationError(admin, page, err)
		}
		if len(users) == 0 {
			return nil
		}

		fresh := make([]panel.User, 0, len(users))
		for _, u := range users {
			if _, dup := seen[u.Username]; dup {
				continue
			}
			seen[u.Username] = struct{}{}
			fresh = append(fresh, u)
		}
		if len(fresh) == 0 {
			continue
		}
		if err := fn(fresh); err != nil {
			return err
		}
	}
	return errors.PaginationError(admin, maxPages, errors.BadRequest("page limit reached"))
}
