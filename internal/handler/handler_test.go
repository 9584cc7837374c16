package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"referral-service/internal/models"
	"referral-service/internal/ratelimit"
	"referral-service/internal/retry"
	"referral-service/internal/service"
)

type stubStore struct {
	inserted []models.Referral
	groups   map[string]models.Group
}

func (s *stubStore) InsertReferral(ctx context.Context, ref models.Referral) error {
	s.inserted = append(s.inserted, ref)
	return nil
}

func (s *stubStore) GroupByID(ctx context.Context, groupID string) (models.Group, error) {
	if g, ok := s.groups[groupID]; ok {
		return g, nil
	}
	return models.Group{}, sql.ErrNoRows
}

func (s *stubStore) ReferralsByUser(ctx context.Context, referrerID string) ([]models.Referral, error) {
	return s.inserted, nil
}

func (s *stubStore) ReferralsForGroup(ctx context.Context, groupID string) ([]models.Referral, error) {
	return s.inserted, nil
}

func (s *stubStore) Statistics(ctx context.Context) (models.ReferralStatistics, error) {
	return models.ReferralStatistics{Total: len(s.inserted), General: len(s.inserted)}, nil
}

type stubAccounts struct{}

func (stubAccounts) CreateReferredUser(ctx context.Context, profile models.UserProfile) (string, error) {
	return "user-123", nil
}

type stubVerifier struct{}

func (stubVerifier) SendVerificationEmail(ctx context.Context, to string, isReferral bool) error {
	return nil
}

func setupTestHandler(t *testing.T) (*Handler, *stubStore) {
	t.Helper()

	store := &stubStore{groups: make(map[string]models.Group)}
	policy := &retry.Policy{MaxRetries: 0, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	svc := service.NewService(store, stubAccounts{}, stubVerifier{},
		ratelimit.NewMemoryLimiter(5, time.Hour), zap.NewNop(),
		service.Options{RetryPolicy: policy})

	return NewHandler(svc), store
}

func setupRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/referrals", h.CreateReferral)
	r.Post("/referrals/batch", h.CreateBatchReferrals)
	r.Get("/referrals/statistics", h.GetReferralStatistics)
	r.Post("/groups/{group_id}/referrals", h.CreateGroupReferral)
	r.Get("/groups/{group_id}/referrals", h.GetReferralsForGroup)
	r.Get("/users/{user_id}/referrals", h.GetReferralsByUser)
	r.Post("/admin/rate-limits/clear", h.ClearRateLimits)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}

	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func validBody() models.ReferralRequest {
	return models.ReferralRequest{
		Email:      "test@example.com",
		Phone:      "+1234567890",
		FirstName:  "John",
		LastName:   "Doe",
		ReferrerID: uuid.New().String(),
	}
}

func TestCreateReferral_Created(t *testing.T) {
	h, store := setupTestHandler(t)
	r := setupRouter(h)

	rr := postJSON(t, r, "/referrals", validBody())

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var outcome models.ReferralOutcome
	if err := json.Unmarshal(rr.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !outcome.Success || outcome.UserID != "user-123" {
		t.Errorf("Unexpected outcome: %+v", outcome)
	}
	if len(store.inserted) != 1 {
		t.Errorf("Expected one stored referral, got %d", len(store.inserted))
	}
}

func TestCreateReferral_ValidationError(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := setupRouter(h)

	body := validBody()
	body.Email = "not-an-email"

	rr := postJSON(t, r, "/referrals", body)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}

	var outcome models.ReferralOutcome
	json.Unmarshal(rr.Body.Bytes(), &outcome)
	if outcome.ErrorDetails == nil || outcome.ErrorDetails.Type != models.ErrorTypeValidation {
		t.Errorf("Expected validation error details, got %+v", outcome.ErrorDetails)
	}
}

func TestCreateReferral_EmptyBody(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := setupRouter(h)

	req := httptest.NewRequest("POST", "/referrals", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
}

func TestCreateReferral_RateLimited(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := setupRouter(h)

	body := validBody()
	for i := 0; i < 5; i++ {
		rr := postJSON(t, r, "/referrals", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("Attempt %d: expected 201, got %d", i+1, rr.Code)
		}
	}

	rr := postJSON(t, r, "/referrals", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rr.Code)
	}
}

func TestCreateGroupReferral_UsesPathGroupID(t *testing.T) {
	h, store := setupTestHandler(t)
	r := setupRouter(h)

	groupID := uuid.New().String()
	store.groups[groupID] = models.Group{ID: groupID, Name: "Youth Group"}

	rr := postJSON(t, r, "/groups/"+groupID+"/referrals", validBody())

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(store.inserted) != 1 || store.inserted[0].GroupID != groupID {
		t.Errorf("Expected the path group ID on the record, got %+v", store.inserted)
	}
}

func TestCreateGroupReferral_UnknownGroup(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := setupRouter(h)

	rr := postJSON(t, r, "/groups/"+uuid.New().String()+"/referrals", validBody())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
}

func TestCreateBatchReferrals(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := setupRouter(h)

	first := validBody()
	second := validBody()
	second.Email = "second@example.com"

	rr := postJSON(t, r, "/referrals/batch", models.CreateBatchRequest{
		Referrals: []models.ReferralRequest{first, second},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var result models.BatchResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.Successful != 2 || result.Failed != 0 {
		t.Errorf("Unexpected batch result: %+v", result)
	}
}

func TestCreateBatchReferrals_Empty(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := setupRouter(h)

	rr := postJSON(t, r, "/referrals/batch", models.CreateBatchRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
}

func TestGetReferralsByUser_InvalidID(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := setupRouter(h)

	req := httptest.NewRequest("GET", "/users/not-a-uuid/referrals", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
}

func TestGetReferralStatistics(t *testing.T) {
	h, store := setupTestHandler(t)
	r := setupRouter(h)

	store.inserted = []models.Referral{{ID: uuid.New().String()}}

	req := httptest.NewRequest("GET", "/referrals/statistics", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var stats models.ReferralStatistics
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("Expected total 1, got %d", stats.Total)
	}
}

func TestClearRateLimits(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := setupRouter(h)

	body := validBody()
	for i := 0; i < 6; i++ {
		postJSON(t, r, "/referrals", body)
	}

	req := httptest.NewRequest("POST", "/admin/rate-limits/clear", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rr.Code)
	}

	if rr := postJSON(t, r, "/referrals", body); rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201 after clearing limits, got %d", rr.Code)
	}
}
