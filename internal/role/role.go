// Package role decides whether an email belongs to the administrator.
package role

import "strings"

// DefaultAdminEmail is the single administrator account.
const DefaultAdminEmail = "admin@gmail.com"

// Classifier compares emails against one configured administrator address.
type Classifier struct {
	admin string
}

// Default classifies against DefaultAdminEmail.
var Default = New(DefaultAdminEmail)

// New returns a Classifier for the given address. An empty address falls back
// to DefaultAdminEmail.
func New(adminEmail string) Classifier {
	a := normalize(adminEmail)
	if a == "" {
		a = DefaultAdminEmail
	}
	return Classifier{admin: a}
}

// IsAdmin is case and surrounding-whitespace insensitive; "" is never admin.
func (c Classifier) IsAdmin(email string) bool {
	if email == "" {
		return false
	}
	return normalize(email) == c.admin
}

// AdminEmail returns the normalized administrator address.
func (c Classifier) AdminEmail() string { return c.admin }

// IsAdmin classifies with the Default classifier.
func IsAdmin(email string) bool { return Default.IsAdmin(email) }

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
