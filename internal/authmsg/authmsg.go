// Package authmsg turns identity failure codes into the text shown to users.
package authmsg

import "fmt"

const (
	EmailAlreadyInUse = "email-already-in-use"
	InvalidEmail      = "invalid-email"
	WeakPassword      = "weak-password"
	MissingPassword   = "missing-password"
	PasswordTooLong   = "password-too-long"
	InvalidCredential = "invalid-credential"
	InvalidToken      = "invalid-token"
)

const fallback = "An unexpected error occurred. Please try again."

// Message returns the display text for code. minPassword is only used by
// the weak-password message.
func Message(code string, minPassword int) string {
	switch code {
	case EmailAlreadyInUse:
		return "This email is already registered."
	case InvalidEmail:
		return "Please enter a valid email address."
	case WeakPassword:
		return fmt.Sprintf("Password should be at least %d characters.", minPassword)
	case MissingPassword:
		return "Please enter a password."
	case PasswordTooLong:
		return "Password must be at most 72 bytes long."
	case InvalidCredential:
		return "Invalid email or password."
	case InvalidToken:
		return "This link is invalid or has expired."
	default:
		return fallback
	}
}
