// Package nav decides which screen the application shows and keeps the
// navigation stack.
package nav

import (
	"github.com/thislinkplease/midterm-cross-platform/internal/role"
	"github.com/thislinkplease/midterm-cross-platform/internal/session"
)

type Route string

const (
	Login         Route = "login"
	Signup        Route = "signup"
	AdminHome     Route = "admin-home"
	AdminEditUser Route = "admin-edit-user"
	UserHome      Route = "user-home"
	UserProfile   Route = "user-profile"
)

// Group is the set of routes guarded together.
type Group string

const (
	GroupAuth  Group = "auth"
	GroupAdmin Group = "admin"
	GroupUser  Group = "user"
)

func (r Route) Group() Group {
	switch r {
	case Login, Signup:
		return GroupAuth
	case AdminHome, AdminEditUser:
		return GroupAdmin
	case UserHome, UserProfile:
		return GroupUser
	}
	return ""
}

// Resolve is the single routing guard. ok is false while the session is
// still loading, in which case nothing should be shown yet.
func Resolve(st session.State, c role.Classifier) (Route, bool) {
	if st.Loading {
		return "", false
	}
	if st.Session == nil {
		return Login, true
	}
	if c.IsAdmin(st.Email()) {
		return AdminHome, true
	}
	return UserHome, true
}

// Entry is a screen group's entry point. It returns the route to move to, or
// ok == false to stay where it is.
type Entry func(current Route, st session.State, c role.Classifier) (Route, bool)

// RootEntry is the application index; it always leaves for the guarded route.
func RootEntry(_ Route, st session.State, c role.Classifier) (Route, bool) {
	r, ok := Resolve(st, c)
	if !ok {
		return "", false
	}
	return landing(r), true
}

// AdminEntry guards the admin group.
func AdminEntry(_ Route, st session.State, c role.Classifier) (Route, bool) {
	return leaveGroup(GroupAdmin, st, c)
}

// UserEntry guards the user group; its index lands on the profile.
func UserEntry(current Route, st session.State, c role.Classifier) (Route, bool) {
	if r, ok := leaveGroup(GroupUser, st, c); ok {
		return r, true
	}
	if current == UserHome {
		return UserProfile, true
	}
	return "", false
}

// AuthEntry moves a signed-in user out of the auth screens.
func AuthEntry(_ Route, st session.State, c role.Classifier) (Route, bool) {
	return leaveGroup(GroupAuth, st, c)
}

// EntryFor returns the entry point guarding r's group.
func EntryFor(r Route) Entry {
	switch r.Group() {
	case GroupAdmin:
		return AdminEntry
	case GroupUser:
		return UserEntry
	case GroupAuth:
		return AuthEntry
	}
	return RootEntry
}

func leaveGroup(g Group, st session.State, c role.Classifier) (Route, bool) {
	r, ok := Resolve(st, c)
	if !ok || r.Group() == g {
		return "", false
	}
	return landing(r), true
}

// landing maps a guard result to the screen that is actually shown.
func landing(r Route) Route {
	if r == UserHome {
		return UserProfile
	}
	return r
}
