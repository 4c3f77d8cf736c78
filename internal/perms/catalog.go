package perms

// Permission IDs referenced from code. The full catalog lives in
// DefaultPermissions.
const (
	PermBoardConfig     = "board.config"
	PermBoardCreate     = "board.create"
	PermBoardDelete     = "board.delete"
	PermBoardReassign   = "board.reassign"
	PermPostCreate      = "board.post.create"
	PermPostAttach      = "board.post.attach"
	PermPostNoCaptcha   = "board.post.nocaptcha"
	PermPostDeleteOther = "board.post.delete.other"
	PermUserRole        = "board.user.role"
	PermBanReason       = "board.user.ban.reason"
	PermBanFree         = "board.user.ban.free"
	PermUnban           = "board.user.unban"
	PermUserCreate      = "site.user.create"
	PermSysCache        = "sys.cache"
	PermSysConfig       = "sys.config"
	PermSysRoles        = "sys.roles"
	PermSysPermissions  = "sys.permissions"
	PermSysBoards       = "sys.boards"
	PermSysUsers        = "sys.users"
)

// DefaultPermissions is the built-in permission catalog. Atoms never change
// identity at runtime; the catalog is loaded once and treated as read-only.
func DefaultPermissions() []Permission {
	return []Permission{
		{ID: PermBoardConfig},
		{ID: "board.logs", BaseValue: true},
		{ID: PermBoardCreate},
		{ID: PermBoardDelete},
		{ID: PermBoardReassign},
		{ID: "board.reports"},
		{ID: PermPostCreate, BaseValue: true},
		{ID: PermPostAttach, BaseValue: true},
		{ID: "board.post.delete.self", BaseValue: true},
		{ID: PermPostDeleteOther},
		{ID: "board.post.edit.self"},
		{ID: "board.post.edit.other"},
		{ID: PermPostNoCaptcha},
		{ID: "board.post.sticky"},
		{ID: "board.post.lock"},
		{ID: "board.post.bumplock"},
		{ID: "board.post.lock_bypass"},
		{ID: "board.post.report", BaseValue: true},
		{ID: PermUserRole},
		{ID: PermBanReason},
		{ID: PermBanFree},
		{ID: PermUnban},
		{ID: "board.image.ban"},
		{ID: "board.image.upload"},
		{ID: "board.image.delete.self"},
		{ID: "board.image.delete.other"},
		{ID: "board.image.spoiler.upload", BaseValue: true},
		{ID: "board.image.spoiler.other"},

		{ID: PermUserCreate},
		{ID: "site.user.merge"},
		{ID: "site.user.raw_ip"},
		{ID: "site.post.report"},
		{ID: "site.pm"},
		{ID: "site.reports"},

		{ID: PermSysBoards},
		{ID: PermSysCache},
		{ID: PermSysConfig},
		{ID: "sys.logs"},
		{ID: PermSysRoles},
		{ID: PermSysPermissions},
		{ID: "sys.tools"},
		{ID: PermSysUsers},
	}
}

// DefaultRoles is the global system role set. Every board additionally gets
// a board-scoped owner role inheriting from the owner template.
func DefaultRoles() []Role {
	return []Role{
		{ID: RoleAnonymous, Slug: "anonymous", Name: "Anonymous", IsSystem: true},
		{ID: RoleAdmin, Slug: "admin", Name: "Administrator", Capcode: "Administrator", IsSystem: true},
		{ID: RoleModerator, Slug: "moderator", Name: "Global Volunteer", Capcode: "Global Volunteer", IsSystem: true},
		{ID: RoleOwner, Slug: "owner", Name: "Board Owner", Capcode: "Board Owner", IsSystem: true},
		{ID: RoleVolunteer, Slug: "volunteer", Name: "Board Volunteer", Capcode: "Board Volunteer", IsSystem: true},
		{ID: RoleUnaccountable, Slug: "unaccountable", Name: "Proxy User", InheritID: RoleAnonymous, IsSystem: true},
	}
}

// DefaultOverrides is the stock grant set for the system roles. The site
// administrator role carries no rows; it short-circuits in the resolver.
func DefaultOverrides() []Override {
	grants := map[int64][]string{
		RoleAnonymous: {
			PermBoardCreate,
			"board.image.delete.self",
			"board.image.spoiler.upload",
			"board.post.delete.self",
			"board.post.report",
			"site.post.report",
			PermUserCreate,
		},
		RoleModerator: {
			PermPostCreate,
			PermPostDeleteOther,
			"board.post.delete.self",
			"board.post.edit.other",
			"board.post.edit.self",
			"board.post.lock",
			"board.post.bumplock",
			"board.post.lock_bypass",
			"board.post.sticky",
			"board.image.ban",
			"board.image.delete.other",
			"board.image.delete.self",
			"board.image.spoiler.other",
			"board.image.spoiler.upload",
			PermBanReason,
			PermBanFree,
			PermUnban,
			PermUserRole,
			"board.reports",
			"site.reports",
		},
		RoleOwner: {
			PermBoardConfig,
			PermPostDeleteOther,
			"board.post.delete.self",
			"board.post.edit.other",
			"board.post.edit.self",
			"board.post.lock",
			"board.post.bumplock",
			"board.post.lock_bypass",
			"board.post.sticky",
			"board.image.ban",
			"board.image.delete.other",
			"board.image.delete.self",
			"board.image.spoiler.other",
			"board.image.spoiler.upload",
			PermBanReason,
			PermBanFree,
			PermUnban,
			"board.reports",
			PermUserCreate,
		},
		RoleVolunteer: {
			PermPostDeleteOther,
			"board.post.delete.self",
			"board.post.edit.other",
			"board.post.edit.self",
			"board.post.lock",
			"board.post.bumplock",
			"board.post.lock_bypass",
			"board.post.sticky",
			"board.image.ban",
			"board.image.delete.other",
			"board.image.delete.self",
			"board.image.spoiler.other",
			"board.image.spoiler.upload",
			PermBanReason,
			PermBanFree,
			PermUnban,
			"board.reports",
		},
	}

	var out []Override
	for _, roleID := range []int64{RoleAnonymous, RoleModerator, RoleOwner, RoleVolunteer} {
		for _, perm := range grants[roleID] {
			out = append(out, Override{RoleID: roleID, PermissionID: perm, Value: true})
		}
	}
	return out
}
