package leads

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

const (
	nameMinLen  = 2
	nameMaxLen  = 100
	emailMaxLen = 255
)

// namePattern: letters, spaces, hyphens and apostrophes only
var namePattern = regexp.MustCompile(`^[\p{L}][\p{L} '-]*$`)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is the full list of violated constraints for one request.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

// ValidateUpsertInput enumerates every violated constraint; an empty slice
// means the input is acceptable.
func ValidateUpsertInput(input UpsertInput) ValidationErrors {
	var errors ValidationErrors

	name := strings.TrimSpace(input.Name)
	if name == "" {
		errors = append(errors, ValidationError{"name", "is required"})
	} else if len(name) < nameMinLen {
		errors = append(errors, ValidationError{"name", fmt.Sprintf("must have at least %d characters", nameMinLen)})
	} else if len(name) > nameMaxLen {
		errors = append(errors, ValidationError{"name", fmt.Sprintf("must not exceed %d characters", nameMaxLen)})
	} else if !namePattern.MatchString(name) {
		errors = append(errors, ValidationError{"name", "may only contain letters, spaces, hyphens and apostrophes"})
	}

	email := strings.TrimSpace(input.Email)
	if email == "" {
		errors = append(errors, ValidationError{"email", "is required"})
	} else if len(email) > emailMaxLen {
		errors = append(errors, ValidationError{"email", fmt.Sprintf("must not exceed %d characters", emailMaxLen)})
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		errors = append(errors, ValidationError{"email", "is invalid"})
	}

	return errors
}

// NormalizeEmail lowercases and trims; emails are unique case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
