package domain

type Role string

const (
	// Officers represent a student organization and submit/track its documents.
	RoleOfficer Role = "officer"
	// Admins approve officer accounts and are exempt from the institutional email policy.
	RoleAdmin Role = "admin"
)

func IsValidRole(r string) bool {
	return r == string(RoleOfficer) || r == string(RoleAdmin)
}

// RoleRank: bigger => higher privilege
func RoleRank(r string) int {
	switch r {
	case string(RoleOfficer):
		return 1
	case string(RoleAdmin):
		return 2
	default:
		return 0
	}
}

// Status gates password login independently of credential correctness.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusActive, StatusInactive:
		return true
	default:
		return false
	}
}
