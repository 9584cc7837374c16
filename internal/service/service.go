// Package service orchestrates the referral pipeline: sanitize,
// validate, rate-limit, create the referred account, send the
// verification email, persist the referral record.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"referral-service/internal/backend"
	"referral-service/internal/cache"
	"referral-service/internal/email"
	"referral-service/internal/events"
	"referral-service/internal/models"
	"referral-service/internal/ratelimit"
	"referral-service/internal/retry"
	"referral-service/internal/tracing"
	"referral-service/internal/validation"
)

const groupCacheTTL = 5 * time.Minute

// ReferralStore is the persistence collaborator for referral records
// and group reads.
type ReferralStore interface {
	InsertReferral(ctx context.Context, ref models.Referral) error
	GroupByID(ctx context.Context, groupID string) (models.Group, error)
	ReferralsByUser(ctx context.Context, referrerID string) ([]models.Referral, error)
	ReferralsForGroup(ctx context.Context, groupID string) ([]models.Referral, error)
	Statistics(ctx context.Context) (models.ReferralStatistics, error)
}

// AccountCreator creates the referred user's account.
type AccountCreator interface {
	CreateReferredUser(ctx context.Context, profile models.UserProfile) (string, error)
}

// Service wires the referral pipeline together. All collaborators are
// injected so tests can instantiate independent instances.
type Service struct {
	store    ReferralStore
	accounts AccountCreator
	email    email.Verifier
	limiter  ratelimit.Limiter
	groups   cache.Cache
	events   *events.Manager
	log      *zap.Logger
	policy   retry.Policy
}

// Options carries optional collaborators for NewService.
type Options struct {
	// GroupCache, when set, caches positive group-existence lookups.
	GroupCache cache.Cache
	// Events, when set, receives referral lifecycle events.
	Events *events.Manager
	// RetryPolicy overrides the default remote-call retry policy.
	RetryPolicy *retry.Policy
}

// NewService creates a new service instance.
func NewService(store ReferralStore, accounts AccountCreator, verifier email.Verifier, limiter ratelimit.Limiter, log *zap.Logger, opts Options) *Service {
	policy := retry.DefaultPolicy()
	if opts.RetryPolicy != nil {
		policy = *opts.RetryPolicy
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		store:    store,
		accounts: accounts,
		email:    verifier,
		limiter:  limiter,
		groups:   opts.GroupCache,
		events:   opts.Events,
		log:      log,
		policy:   policy,
	}
}

// CreateReferral runs the pipeline for a general referral. A group ID
// may still be present, in which case the referral targets that group.
func (s *Service) CreateReferral(ctx context.Context, req models.ReferralRequest) models.ReferralOutcome {
	return s.createReferral(ctx, req, false)
}

// CreateGroupReferral runs the pipeline for a group referral; a missing
// group ID is a validation error in its own right.
func (s *Service) CreateGroupReferral(ctx context.Context, req models.ReferralRequest) models.ReferralOutcome {
	return s.createReferral(ctx, req, true)
}

func (s *Service) createReferral(ctx context.Context, req models.ReferralRequest, requireGroup bool) models.ReferralOutcome {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "referral.create")
	defer span.End()

	req = validation.SanitizeRequest(req)
	span.SetAttributes(attribute.Bool("referral.group", req.GroupID != ""))

	// Validation failures never reach a remote call.
	if result := validation.ValidateRequest(req, requireGroup); !result.IsValid {
		return validationOutcome(result)
	}

	decision, err := s.limiter.CanMakeReferral(ctx, req.ReferrerID)
	if err != nil {
		s.log.Error("rate limit check failed", zap.String("referrer_id", req.ReferrerID), zap.Error(err))
		return s.failureOutcome(ctx, req, backend.Translate(err))
	}
	if !decision.Allowed {
		return models.ReferralOutcome{
			Success: false,
			Error:   decision.Reason,
			ErrorDetails: &models.ErrorDetails{
				Type:        models.ErrorTypeRateLimit,
				Retryable:   true,
				Suggestions: []string{fmt.Sprintf("Try again in %d minutes", decision.RetryAfter)},
			},
		}
	}

	// The attempt is accepted for processing: it counts against the
	// window even if a downstream step fails.
	if err := s.limiter.RecordReferral(ctx, req.ReferrerID); err != nil {
		s.log.Warn("failed to record rate limit usage", zap.String("referrer_id", req.ReferrerID), zap.Error(err))
	}

	if req.GroupID != "" {
		if outcome, ok := s.checkGroup(ctx, req.GroupID); !ok {
			return outcome
		}
	}

	// Account creation is terminal: no referral record, no email.
	userID, err := retry.DoValue(ctx, s.policy, func(ctx context.Context) (string, error) {
		return s.accounts.CreateReferredUser(ctx, models.UserProfile{
			Email:     req.Email,
			Phone:     req.Phone,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
	})
	if err != nil {
		s.log.Error("account creation failed", zap.String("email", req.Email), zap.Error(err))
		cls := backend.Translate(err)
		cls.Message = "Failed to create user account"
		return s.failureOutcome(ctx, req, cls)
	}
	span.SetAttributes(attribute.String("referral.user_id", userID))

	// Best effort: a failed or panicking email send never aborts the
	// referral.
	s.sendVerificationEmail(ctx, req.Email)

	err = retry.Do(ctx, s.policy, func(ctx context.Context) error {
		return s.store.InsertReferral(ctx, models.Referral{
			ReferrerID:       req.ReferrerID,
			ReferredByUserID: userID,
			GroupID:          req.GroupID,
			Email:            req.Email,
			Note:             req.Note,
		})
	})
	if err != nil {
		// The created account is not rolled back; reconciliation of
		// orphaned accounts is a separate operational concern.
		s.log.Error("referral insert failed",
			zap.String("referrer_id", req.ReferrerID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return s.failureOutcome(ctx, req, backend.Translate(err))
	}

	if s.events != nil {
		s.events.PublishReferralCreated(ctx, events.ReferralCreatedData{
			ReferrerID: req.ReferrerID,
			UserID:     userID,
			GroupID:    req.GroupID,
			Email:      req.Email,
		})
	}

	return models.ReferralOutcome{
		Success:  true,
		UserID:   userID,
		Warnings: validation.EmailWarnings(req.Email),
	}
}

// CreateBatchReferrals applies the pipeline to each item independently.
// One item's failure never aborts the rest.
func (s *Service) CreateBatchReferrals(ctx context.Context, reqs []models.ReferralRequest) models.BatchResult {
	var result models.BatchResult

	for i, req := range reqs {
		outcome := s.createReferral(ctx, req, false)
		if outcome.Success {
			result.Successful++
			continue
		}

		result.Failed++
		result.Errors = append(result.Errors, models.BatchItemError{
			Index: i,
			Email: req.Email,
			Error: outcome.Error,
		})
	}

	return result
}

// GetReferralsByUser lists referrals made by a referrer.
func (s *Service) GetReferralsByUser(ctx context.Context, referrerID string) ([]models.Referral, error) {
	if !validation.IsUUID(referrerID) {
		return nil, fmt.Errorf("invalid referrer ID")
	}
	return s.store.ReferralsByUser(ctx, referrerID)
}

// GetReferralsForGroup lists referrals into a group.
func (s *Service) GetReferralsForGroup(ctx context.Context, groupID string) ([]models.Referral, error) {
	if !validation.IsUUID(groupID) {
		return nil, fmt.Errorf("invalid group ID")
	}
	return s.store.ReferralsForGroup(ctx, groupID)
}

// GetReferralStatistics returns the reporting summary.
func (s *Service) GetReferralStatistics(ctx context.Context) (models.ReferralStatistics, error) {
	return s.store.Statistics(ctx)
}

// ClearRateLimits resets every referrer window. Administrative use.
func (s *Service) ClearRateLimits(ctx context.Context) error {
	return s.limiter.ClearAll(ctx)
}

// checkGroup verifies the target group exists before any account is
// created. Positive lookups are cached; absence is not.
func (s *Service) checkGroup(ctx context.Context, groupID string) (models.ReferralOutcome, bool) {
	if s.groups != nil {
		var g models.Group
		if err := cache.GetJSON(ctx, s.groups, groupCacheKey(groupID), &g); err == nil {
			return models.ReferralOutcome{}, true
		}
	}

	group, err := retry.DoValue(ctx, s.policy, func(ctx context.Context) (models.Group, error) {
		return s.store.GroupByID(ctx, groupID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ReferralOutcome{
				Success: false,
				Error:   "Group not found",
				ErrorDetails: &models.ErrorDetails{
					Type:      models.ErrorTypeValidation,
					Retryable: false,
				},
			}, false
		}
		cls := backend.Translate(err)
		return models.ReferralOutcome{
			Success:      false,
			Error:        cls.Message,
			ErrorDetails: &cls.Details,
		}, false
	}

	if s.groups != nil {
		if err := cache.SetJSON(ctx, s.groups, groupCacheKey(groupID), group, groupCacheTTL); err != nil {
			s.log.Warn("failed to cache group lookup", zap.String("group_id", groupID), zap.Error(err))
		}
	}

	return models.ReferralOutcome{}, true
}

// sendVerificationEmail guards the best-effort email send. The
// non-terminal contract is enforced here, not by trusting the verifier
// to never fail.
func (s *Service) sendVerificationEmail(ctx context.Context, to string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("verification email send panicked", zap.String("email", to), zap.Any("panic", r))
			if s.events != nil {
				s.events.PublishEmailSent(ctx, to, false)
			}
		}
	}()

	err := s.email.SendVerificationEmail(ctx, to, true)
	if err != nil {
		s.log.Warn("verification email failed", zap.String("email", to), zap.Error(err))
	}
	if s.events != nil {
		s.events.PublishEmailSent(ctx, to, err == nil)
	}
}

func (s *Service) failureOutcome(ctx context.Context, req models.ReferralRequest, cls backend.Classification) models.ReferralOutcome {
	if s.events != nil {
		s.events.PublishReferralFailed(ctx, events.ReferralFailedData{
			ReferrerID: req.ReferrerID,
			Email:      req.Email,
			ErrorType:  cls.Details.Type,
			Message:    cls.Message,
		})
	}

	return models.ReferralOutcome{
		Success:      false,
		Error:        cls.Message,
		ErrorDetails: &cls.Details,
	}
}

func validationOutcome(result models.ValidationResult) models.ReferralOutcome {
	fields := make([]string, 0, len(result.Errors))
	for field := range result.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	suggestions := make([]string, 0, len(fields))
	for _, field := range fields {
		suggestions = append(suggestions, fmt.Sprintf("%s: %s", field, result.Errors[field]))
	}

	return models.ReferralOutcome{
		Success: false,
		Error:   result.Errors[fields[0]],
		ErrorDetails: &models.ErrorDetails{
			Type:        models.ErrorTypeValidation,
			Retryable:   false,
			Suggestions: suggestions,
		},
	}
}

func groupCacheKey(groupID string) string {
	return "group:" + groupID
}
