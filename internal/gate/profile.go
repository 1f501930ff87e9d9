package gate

import (
	"strings"

	"github.com/jon4hz/botconsole/internal/platform"
	"github.com/samber/lo"
)

// Profile is the display projection of a user record.
type Profile struct {
	UserID    int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      string `json:"role"`
	Avatar    string `json:"avatar,omitempty"`
}

// NewProfile derives the profile of a user record.
func NewProfile(u platform.User) Profile {
	return Profile{
		UserID:    u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Avatar:    u.Avatar,
	}
}

// DisplayName returns the full name, falling back to the username.
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(strings.Join(lo.Compact([]string{
		strings.TrimSpace(p.FirstName),
		strings.TrimSpace(p.LastName),
	}), " "))
	if name == "" {
		return p.Username
	}
	return name
}

// IsAdmin reports whether the role is in the admin allow-list, ignoring case.
func (p Profile) IsAdmin(adminRoles []string) bool {
	role := strings.TrimSpace(p.Role)
	if role == "" {
		return false
	}
	return lo.ContainsBy(adminRoles, func(r string) bool {
		return strings.EqualFold(strings.TrimSpace(r), role)
	})
}
