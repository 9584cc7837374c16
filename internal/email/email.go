// Package email sends verification emails to referred users. Delivery
// is best-effort: the referral pipeline treats failures here as
// non-terminal.
package email

import (
	"context"

	"go.uber.org/zap"
)

// Verifier sends a verification email to a newly created account.
// isReferral selects the referral-specific template.
type Verifier interface {
	SendVerificationEmail(ctx context.Context, to string, isReferral bool) error
}

// LogVerifier logs the send and reports success. Used when no email
// provider is configured.
type LogVerifier struct {
	log *zap.Logger
}

// NewLogVerifier creates a log-only verifier.
func NewLogVerifier(log *zap.Logger) *LogVerifier {
	return &LogVerifier{log: log}
}

func (v *LogVerifier) SendVerificationEmail(ctx context.Context, to string, isReferral bool) error {
	v.log.Info("verification email skipped (no provider configured)",
		zap.String("to", to),
		zap.Bool("referral", isReferral),
	)
	return nil
}
