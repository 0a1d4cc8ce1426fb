package adminui

import (
	"testing"

	"RelayMessenger/internal/domain"
)

func TestUserRole(t *testing.T) {
	admins := map[string]bool{"root": true}

	tests := []struct {
		name string
		user domain.User
		want string
	}{
		{name: "regular user", user: domain.User{Username: "alice", IsActive: true}, want: "User"},
		{name: "admin", user: domain.User{Username: "root", IsActive: true}, want: "Admin"},
		{name: "admin whitespace", user: domain.User{Username: " root ", IsActive: true}, want: "Admin"},
		{name: "case differs", user: domain.User{Username: "ROOT", IsActive: true}, want: "User"},
		{name: "disabled wins", user: domain.User{Username: "root", IsActive: false}, want: "Disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := userRole(tt.user, admins); got != tt.want {
				t.Fatalf("userRole() = %q, want %q", got, tt.want)
			}
		})
	}
}
