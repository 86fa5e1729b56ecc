package auth

// Role names a set of endpoint permissions in the access policy.
type Role string

// Roles shipped in the default policy. The policy file may define
// additional ones.
const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)
