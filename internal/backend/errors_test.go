package backend

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/lib/pq"

	"referral-service/internal/models"
)

func TestTranslate_UniqueViolation(t *testing.T) {
	err := &pq.Error{Code: "23505", Constraint: "referrals_unique_per_group"}

	cls := Translate(err)

	if cls.Details.Type != models.ErrorTypeDuplicate {
		t.Errorf("Expected duplicate, got %s", cls.Details.Type)
	}
	if cls.Details.Retryable {
		t.Error("Duplicates must not be retryable")
	}
	if !strings.Contains(cls.Message, "already been referred") {
		t.Errorf("Unexpected message: %q", cls.Message)
	}
}

func TestTranslate_ForeignKeyViolation(t *testing.T) {
	cls := Translate(&pq.Error{Code: "23503", Constraint: "referrals_referrer_fkey"})
	if cls.Message != "Invalid referrer or user reference" {
		t.Errorf("Unexpected message: %q", cls.Message)
	}
	if cls.Details.Retryable {
		t.Error("FK violations must not be retryable")
	}

	cls = Translate(&pq.Error{Code: "23503", Constraint: "referrals_group_id_fkey"})
	if cls.Message != "Group not found or has been deleted" {
		t.Errorf("Expected group-specific message, got %q", cls.Message)
	}
}

func TestTranslate_SelfReferralCheck(t *testing.T) {
	cls := Translate(&pq.Error{Code: "23514", Constraint: "referrals_no_self_referral"})

	if cls.Message != "Cannot refer yourself" {
		t.Errorf("Unexpected message: %q", cls.Message)
	}
	if cls.Details.Retryable {
		t.Error("Self-referral must not be retryable")
	}
}

func TestTranslate_WrappedPQError(t *testing.T) {
	wrapped := errors.Join(errors.New("failed to insert referral"),
		&pq.Error{Code: "23505", Constraint: "referrals_unique_general"})

	cls := Translate(wrapped)
	if cls.Details.Type != models.ErrorTypeDuplicate {
		t.Errorf("Expected wrapped pq error to classify as duplicate, got %s", cls.Details.Type)
	}
}

func TestTranslate_NetworkErrors(t *testing.T) {
	cases := []error{
		context.DeadlineExceeded,
		&net.OpError{Op: "dial", Err: errors.New("connection refused")},
		errors.New("dial tcp 10.0.0.1:5432: i/o timeout"),
		errors.New("lookup db.internal: no such host"),
	}

	for _, err := range cases {
		cls := Translate(err)
		if cls.Details.Type != models.ErrorTypeNetwork {
			t.Errorf("Expected network for %v, got %s", err, cls.Details.Type)
		}
		if !cls.Details.Retryable {
			t.Errorf("Network errors must be retryable: %v", err)
		}
	}
}

func TestTranslate_OtherDatabaseError(t *testing.T) {
	cls := Translate(&pq.Error{Code: "42601"}) // syntax_error

	if cls.Details.Type != models.ErrorTypeDatabase {
		t.Errorf("Expected database, got %s", cls.Details.Type)
	}
	if cls.Details.Retryable {
		t.Error("Non-connection database errors must not be retryable")
	}
}

func TestTranslate_UnknownErrorIsTotal(t *testing.T) {
	cls := Translate(errors.New("something nobody anticipated"))

	if cls.Details.Type != models.ErrorTypeUnknown {
		t.Errorf("Expected unknown, got %s", cls.Details.Type)
	}
	if !cls.Details.Retryable {
		t.Error("Unknown errors default to retryable")
	}
	if cls.Message != "An unexpected error occurred" {
		t.Errorf("Unexpected message: %q", cls.Message)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
	if IsTransient(&pq.Error{Code: "23505"}) {
		t.Error("Constraint violations are not transient")
	}
	if !IsTransient(&pq.Error{Code: "08006"}) { // connection_failure
		t.Error("Connection-class errors are transient")
	}
	if !IsTransient(errors.New("connection reset by peer")) {
		t.Error("Connection resets are transient")
	}
	if IsTransient(errors.New("validation failed")) {
		t.Error("Arbitrary errors are not transient")
	}
	if !IsTransient(&net.DNSError{IsTimeout: true}) {
		t.Error("net.Error implementations are transient")
	}
}
