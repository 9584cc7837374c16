package validation

import (
	"fmt"
	"regexp"
	"strings"

	"referral-service/internal/models"
)

const (
	maxNameLength = 50
	maxNoteLength = 500
)

var (
	uuidRegex  = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9\s\-().]{5,18}$`)
	nameRegex  = regexp.MustCompile(`^[A-Za-z' \-]+$`)
)

// ValidateRequest checks a sanitized request and collects every field
// violation. Fields are not short-circuited against each other; within
// the email field the required check takes precedence over the format
// check. requireGroup marks the call as a group referral, which makes
// an absent group ID an error in its own right.
func ValidateRequest(req models.ReferralRequest, requireGroup bool) models.ValidationResult {
	errs := make(map[string]string)

	if req.Email == "" {
		errs["email"] = "Email is required"
	} else if !emailRegex.MatchString(req.Email) {
		errs["email"] = "Invalid email format"
	}

	if req.Phone != "" && !phoneRegex.MatchString(req.Phone) {
		errs["phone"] = "Invalid phone number format"
	}

	validateName(errs, "firstName", "First name", req.FirstName)
	validateName(errs, "lastName", "Last name", req.LastName)

	if len(req.Note) > maxNoteLength {
		errs["note"] = fmt.Sprintf("Note must be %d characters or less", maxNoteLength)
	}

	if !IsUUID(req.ReferrerID) {
		errs["referrerId"] = "Invalid referrer ID format"
	}

	if req.GroupID == "" {
		if requireGroup {
			errs["groupId"] = "Group ID is required for group referrals"
		}
	} else if !IsUUID(req.GroupID) {
		errs["groupId"] = "Invalid group ID format"
	}

	if len(errs) == 0 {
		return models.ValidationResult{IsValid: true}
	}
	return models.ValidationResult{IsValid: false, Errors: errs}
}

func validateName(errs map[string]string, field, label, value string) {
	if value == "" {
		errs[field] = label + " is required"
		return
	}
	if len(value) > maxNameLength {
		errs[field] = fmt.Sprintf("%s must be %d characters or less", label, maxNameLength)
		return
	}
	if !nameRegex.MatchString(value) {
		errs[field] = label + " contains invalid characters"
	}
}

// IsUUID reports whether id is syntactically a valid UUID v4.
func IsUUID(id string) bool {
	return uuidRegex.MatchString(strings.ToLower(id))
}
