package rbac

// Role constants
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// Permission constants
const (
	PermOpenDispute        = "open_dispute"
	PermMessageDispute     = "message_dispute"
	PermCloseDispute       = "close_dispute"
	PermResolveDispute     = "resolve_dispute"
	PermRequestReplacement = "request_replacement"
	PermManagePool         = "manage_pool"
	PermForceEscrow        = "force_escrow"
	PermRunScheduler       = "run_scheduler"
	PermManageSellers      = "manage_sellers"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleBuyer: {
		PermOpenDispute, PermMessageDispute, PermCloseDispute, PermRequestReplacement,
	},
	RoleSeller: {
		PermMessageDispute, PermManagePool,
	},
	RoleAdmin: {
		PermMessageDispute, PermResolveDispute, PermForceEscrow,
		PermRunScheduler, PermManageSellers,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}
