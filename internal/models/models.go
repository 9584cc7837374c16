package models

import "time"

// ErrorType classifies a failed referral attempt for the caller.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeDuplicate  ErrorType = "duplicate"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// ReferralRequest is the input to the referral pipeline. It is never
// persisted as-is.
type ReferralRequest struct {
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Note       string `json:"note,omitempty"`
	ReferrerID string `json:"referrer_id"`        // uuid
	GroupID    string `json:"group_id,omitempty"` // uuid; present => group referral
}

// ValidationResult holds every field violation found in one pass.
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// RateLimitDecision is the answer to "may this referrer attempt another
// referral right now".
type RateLimitDecision struct {
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
	RetryAfter int    `json:"retry_after_minutes,omitempty"` // minutes
}

// ErrorDetails gives the UI enough structure to decide whether to offer
// a retry action.
type ErrorDetails struct {
	Type        ErrorType `json:"type"`
	Retryable   bool      `json:"retryable"`
	Suggestions []string  `json:"suggestions,omitempty"`
}

// ReferralOutcome is the result of a single referral attempt. Warnings
// are advisory and never block success.
type ReferralOutcome struct {
	Success      bool              `json:"success"`
	UserID       string            `json:"user_id,omitempty"`
	Error        string            `json:"error,omitempty"`
	ErrorDetails *ErrorDetails     `json:"error_details,omitempty"`
	Warnings     map[string]string `json:"warnings,omitempty"`
}

// BatchItemError identifies which batch item failed and why.
type BatchItemError struct {
	Index int    `json:"index"`
	Email string `json:"email"`
	Error string `json:"error"`
}

// BatchResult aggregates per-item outcomes of a batch referral call.
type BatchResult struct {
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Errors     []BatchItemError `json:"errors,omitempty"`
}

// Referral is a persisted referral record.
type Referral struct {
	ID               string    `json:"id"`                  // uuid
	ReferrerID       string    `json:"referrer_id"`         // uuid
	ReferredByUserID string    `json:"referred_by_user_id"` // uuid of the created account
	GroupID          string    `json:"group_id,omitempty"`  // uuid, empty for general referrals
	Email            string    `json:"email"`
	Note             string    `json:"note,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Group is a small group a referral may target.
type Group struct {
	ID        string    `json:"id"` // uuid
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// UserProfile is what the account collaborator needs to create the
// referred user's account.
type UserProfile struct {
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// GroupReferralCount is one row of the per-group statistics breakdown.
type GroupReferralCount struct {
	GroupID string `json:"group_id"`
	Count   int    `json:"count"`
}

// ReferralStatistics is the reporting summary for the statistics endpoint.
type ReferralStatistics struct {
	Total   int                  `json:"total"`
	General int                  `json:"general"`
	Group   int                  `json:"group"`
	ByGroup []GroupReferralCount `json:"by_group,omitempty"`
}

// CreateBatchRequest is the request body for batch referral creation.
type CreateBatchRequest struct {
	Referrals []ReferralRequest `json:"referrals"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
