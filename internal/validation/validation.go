package validation

import (
	"strings"
	"unicode"

	"referral-service/internal/models"
)

// SanitizeString removes control characters and trims surrounding
// whitespace. Internal whitespace is preserved.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// SanitizeRequest returns a normalized copy of the request. It never
// fails and is idempotent: sanitizing an already-sanitized request
// yields an identical request.
func SanitizeRequest(req models.ReferralRequest) models.ReferralRequest {
	return models.ReferralRequest{
		Email:      strings.ToLower(SanitizeString(req.Email)),
		Phone:      SanitizeString(req.Phone),
		FirstName:  SanitizeString(req.FirstName),
		LastName:   SanitizeString(req.LastName),
		Note:       SanitizeString(req.Note),
		ReferrerID: SanitizeString(req.ReferrerID),
		GroupID:    SanitizeString(req.GroupID),
	}
}
