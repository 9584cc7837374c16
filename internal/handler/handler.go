package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"referral-service/internal/models"
	"referral-service/internal/service"
	"referral-service/internal/validation"
)

const maxBatchSize = 100

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
	}
}

// CreateReferral handles POST /referrals
func (h *Handler) CreateReferral(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeReferral(w, r)
	if !ok {
		return
	}

	outcome := h.service.CreateReferral(r.Context(), req)
	h.respondJSON(w, outcomeStatus(outcome), outcome)
}

// CreateGroupReferral handles POST /groups/{group_id}/referrals
func (h *Handler) CreateGroupReferral(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeReferral(w, r)
	if !ok {
		return
	}
	req.GroupID = validation.SanitizeString(chi.URLParam(r, "group_id"))

	outcome := h.service.CreateGroupReferral(r.Context(), req)
	h.respondJSON(w, outcomeStatus(outcome), outcome)
}

// CreateBatchReferrals handles POST /referrals/batch
func (h *Handler) CreateBatchReferrals(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	if len(req.Referrals) == 0 {
		h.respondError(w, http.StatusBadRequest, "no referrals provided")
		return
	}
	if len(req.Referrals) > maxBatchSize {
		h.respondError(w, http.StatusBadRequest, "cannot process more than 100 referrals per request")
		return
	}

	result := h.service.CreateBatchReferrals(r.Context(), req.Referrals)
	h.respondJSON(w, http.StatusOK, result)
}

// GetReferralsByUser handles GET /users/{user_id}/referrals
func (h *Handler) GetReferralsByUser(w http.ResponseWriter, r *http.Request) {
	userID := validation.SanitizeString(chi.URLParam(r, "user_id"))

	referrals, err := h.service.GetReferralsByUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, referrals)
}

// GetReferralsForGroup handles GET /groups/{group_id}/referrals
func (h *Handler) GetReferralsForGroup(w http.ResponseWriter, r *http.Request) {
	groupID := validation.SanitizeString(chi.URLParam(r, "group_id"))

	referrals, err := h.service.GetReferralsForGroup(r.Context(), groupID)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, referrals)
}

// GetReferralStatistics handles GET /referrals/statistics
func (h *Handler) GetReferralStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetReferralStatistics(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to load referral statistics")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
}

// ClearRateLimits handles POST /admin/rate-limits/clear
func (h *Handler) ClearRateLimits(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearRateLimits(r.Context()); err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to clear rate limits")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeReferral(w http.ResponseWriter, r *http.Request) (models.ReferralRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.ReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return models.ReferralRequest{}, false
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return models.ReferralRequest{}, false
	}

	return req, true
}

// outcomeStatus maps an outcome's error classification to an HTTP
// status code.
func outcomeStatus(outcome models.ReferralOutcome) int {
	if outcome.Success {
		return http.StatusCreated
	}
	if outcome.ErrorDetails == nil {
		return http.StatusInternalServerError
	}

	switch outcome.ErrorDetails.Type {
	case models.ErrorTypeValidation:
		return http.StatusBadRequest
	case models.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case models.ErrorTypeDuplicate:
		return http.StatusConflict
	case models.ErrorTypeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are already written; nothing useful left to do.
		_ = err
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
