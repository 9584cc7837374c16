// Package backend classifies raw collaborator errors into the
// user-facing error taxonomy. Every error maps to some outcome; raw
// backend errors never cross the service boundary.
package backend

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"

	"referral-service/internal/models"
)

// Postgres error classes the referral schema can produce.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// Classification is a translated backend failure.
type Classification struct {
	Message string
	Details models.ErrorDetails
}

// Translate maps a raw backend error to a user-facing message and
// structured details. It is total: unmatched errors classify as
// unknown and retryable so the caller may offer a retry action.
func Translate(err error) Classification {
	pqErr := &pq.Error{}
	if errors.As(err, &pqErr) {
		return translatePQ(pqErr)
	}

	if isNetworkError(err) {
		return Classification{
			Message: "Network error, please try again",
			Details: models.ErrorDetails{
				Type:        models.ErrorTypeNetwork,
				Retryable:   true,
				Suggestions: []string{"Check your connection and try again"},
			},
		}
	}

	return Classification{
		Message: "An unexpected error occurred",
		Details: models.ErrorDetails{
			Type:      models.ErrorTypeUnknown,
			Retryable: true,
		},
	}
}

func translatePQ(pqErr *pq.Error) Classification {
	switch pqErr.Code {
	case codeUniqueViolation:
		return Classification{
			Message: "This user has already been referred by you",
			Details: models.ErrorDetails{
				Type:      models.ErrorTypeDuplicate,
				Retryable: false,
			},
		}
	case codeForeignKeyViolation:
		if strings.Contains(pqErr.Constraint, "group") {
			return Classification{
				Message: "Group not found or has been deleted",
				Details: models.ErrorDetails{
					Type:      models.ErrorTypeValidation,
					Retryable: false,
				},
			}
		}
		return Classification{
			Message: "Invalid referrer or user reference",
			Details: models.ErrorDetails{
				Type:      models.ErrorTypeValidation,
				Retryable: false,
			},
		}
	case codeCheckViolation:
		if strings.Contains(pqErr.Constraint, "self") {
			return Classification{
				Message: "Cannot refer yourself",
				Details: models.ErrorDetails{
					Type:      models.ErrorTypeValidation,
					Retryable: false,
				},
			}
		}
		return Classification{
			Message: "Referral was rejected by a data constraint",
			Details: models.ErrorDetails{
				Type:      models.ErrorTypeValidation,
				Retryable: false,
			},
		}
	}

	return Classification{
		Message: "A database error occurred",
		Details: models.ErrorDetails{
			Type:      models.ErrorTypeDatabase,
			Retryable: false,
		},
	}
}

// IsTransient reports whether an error is likely to succeed on retry.
// Constraint violations and other structural failures are permanent;
// network-shaped failures are transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	pqErr := &pq.Error{}
	if errors.As(err, &pqErr) {
		// Connection-class errors (08xxx) are worth retrying; data and
		// constraint errors are not.
		return strings.HasPrefix(string(pqErr.Code), "08")
	}

	return isNetworkError(err)
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"timed out",
		"no such host",
		"network is unreachable",
		"broken pipe",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
