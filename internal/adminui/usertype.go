package adminui

import "RelayMessenger/internal/domain"

func userRole(u domain.User, admins map[string]bool) string {
	switch {
	case !u.IsActive:
		return "Disabled"
	case admins[normalizeUsername(u.Username)]:
		return "Admin"
	default:
		return "User"
	}
}
