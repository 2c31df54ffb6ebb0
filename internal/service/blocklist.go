package service

import (
	"strings"

	"userhub/api/internal/apperr"
)

const LocationBlockedUsername = "MODEL:USER:CHECK_BLOCKED_USERNAMES:BLOCKED_USERNAME"

// reserved for routes, system mailboxes and staff.
var blockedUsernames = []string{
	"activate", "activation", "admin", "administrator", "api", "auth",
	"contact", "dashboard", "healthz", "help", "login", "logout",
	"me", "moderator", "noreply", "password", "postmaster", "register",
	"root", "security", "session", "sessions", "settings", "signup",
	"staff", "status", "support", "system", "test", "token", "user",
	"username", "users", "webmaster",
}

func checkBlockedUsername(username string) error {
	for _, name := range blockedUsernames {
		if strings.EqualFold(name, username) {
			return apperr.Validation(
				"This username is reserved for system use.",
				LocationBlockedUsername,
				apperr.WithKey("username"),
				apperr.WithAction("Choose another username and try again."),
			)
		}
	}
	return nil
}
