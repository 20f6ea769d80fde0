package domain

import "strings"

// DefaultEmailDomains are the institutional suffixes accepted out of the box.
var DefaultEmailDomains = []string{"student.buksu.edu.ph", "buksu.edu.ph"}

// EmailPolicy restricts account emails to approved institutional domains.
type EmailPolicy struct {
	Domains []string
}

func NewEmailPolicy(domains []string) EmailPolicy {
	cleaned := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "@")
		if d != "" {
			cleaned = append(cleaned, d)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultEmailDomains...)
	}
	return EmailPolicy{Domains: cleaned}
}

// Allows reports whether email may be used by an account with the given role.
// Admin accounts are exempt. Matching is on the exact "@domain" suffix, so
// "x@evilbuksu.edu.ph" does not pass for "buksu.edu.ph".
func (p EmailPolicy) Allows(email string, role Role) bool {
	if role == RoleAdmin {
		return true
	}
	return p.AllowsEmail(email)
}

func (p EmailPolicy) AllowsEmail(email string) bool {
	email = NormalizeEmail(email)
	for _, d := range p.Domains {
		if strings.HasSuffix(email, "@"+d) {
			return true
		}
	}
	return false
}
