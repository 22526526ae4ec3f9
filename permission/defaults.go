package permission

import (
	"github.com/tvshows/authclient/session"
)

// Catalog capabilities.
const (
	CatalogBrowse      = "catalog.browse"
	WatchlistManage    = "watchlist.manage"
	WatchlistUnlimited = "watchlist.unlimited"
	ReviewRead         = "review.read"
	ReviewAuthor       = "review.author"
	ReviewModerate     = "review.moderate"
	AccountPromote     = "account.promote"
	AccountList        = "account.list"
)

var (
	freeCapabilities = []string{CatalogBrowse, WatchlistManage, ReviewRead}

	premiumCapabilities = append(append([]string{}, freeCapabilities...),
		WatchlistUnlimited, ReviewAuthor)

	adminCapabilities = append(append([]string{}, premiumCapabilities...),
		ReviewModerate, AccountPromote, AccountList)
)

// Defaults returns the frozen default tier table.
func Defaults() *RoleManager {
	reg := NewRegistry()
	for _, name := range adminCapabilities {
		if _, err := reg.Register(name); err != nil {
			panic("permission: default registry: " + err.Error())
		}
	}
	reg.Freeze()

	rm := NewRoleManager(reg)
	table := map[session.Role][]string{
		session.RoleFree:    freeCapabilities,
		session.RolePremium: premiumCapabilities,
		session.RoleAdmin:   adminCapabilities,
	}
	for _, role := range []session.Role{session.RoleFree, session.RolePremium, session.RoleAdmin} {
		if err := rm.RegisterRole(role, table[role]); err != nil {
			panic("permission: default roles: " + err.Error())
		}
	}
	rm.Freeze()
	return rm
}

// MinimumRole returns the lowest tier of rm holding capability, or false if
// no registered role does.
func MinimumRole(rm *RoleManager, capability string) (session.Role, bool) {
	for _, role := range []session.Role{session.RoleFree, session.RolePremium, session.RoleAdmin} {
		if ok, err := rm.Allows(role, capability); err == nil && ok {
			return role, true
		}
	}
	return "", false
}
