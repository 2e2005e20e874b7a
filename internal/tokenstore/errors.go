package tokenstore

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotFound is returned when the token file does not exist. Callers treat
// it as "no credentials yet".
var ErrNotFound = errors.New("token file not found")

// UnknownAccountError reports an explicitly requested account key that the
// token file does not contain.
type UnknownAccountError struct {
	Key       string
	Available []string
}

func (e *UnknownAccountError) Error() string {
	available := "none"
	if len(e.Available) > 0 {
		available = strings.Join(e.Available, ", ")
	}
	return fmt.Sprintf("account %q not found in token file (available: %s); authorize it first with `mcp-gmail auth --account %s`",
		e.Key, available, e.Key)
}

// IsUnknownAccount reports whether err is an UnknownAccountError.
func IsUnknownAccount(err error) bool {
	var target *UnknownAccountError
	return errors.As(err, &target)
}

// Account keys are often the mailbox address, so "@", "." and "+" are allowed.
var accountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.@+-]*$`)

// ValidateAccountName checks that an account key is safe to use as a JSON key
// and as a token file suffix.
func ValidateAccountName(account string) error {
	if account == "" {
		return fmt.Errorf("account name cannot be empty")
	}
	if len(account) > 64 {
		return fmt.Errorf("account name too long (max 64 characters)")
	}
	if !accountNamePattern.MatchString(account) || strings.Contains(account, "..") {
		return fmt.Errorf("account name %q must start with a letter or digit and contain only letters, digits, '.', '@', '+', '-' and '_'", account)
	}
	if account == legacyMarker {
		return fmt.Errorf("account name %q is reserved", account)
	}
	return nil
}
