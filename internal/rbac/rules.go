package rbac

const (
	RoleStudent      = "student"
	RoleCompanyAdmin = "company_admin"
	RoleSuperAdmin   = "super_admin"
)

var RolePermissions = map[string][]string{
	RoleStudent: {
		"theory:read",
		"test:take",
		"attempt:view-own",
		"certificate:view-own",
	},
	RoleCompanyAdmin: {
		"access_code:create",
		"access_code:list",
		"access_code:update",
		"session:view",
		"course:list",
	},
	RoleSuperAdmin: {
		"*", // everything
	},
}
