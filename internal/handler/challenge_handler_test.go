package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/banking-api/internal/domain/entity"
	apperrors "github.com/yourusername/banking-api/internal/pkg/errors"
	"github.com/yourusername/banking-api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestGinContext builds a *gin.Context with a JSON body for tests.
func newTestGinContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()

	var req *http.Request
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, path, bytes.NewReader(bodyBytes))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func parseJSONResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err, "Response body should be valid JSON: %s", w.Body.String())
	return resp
}

// ============================================================================
// In-process fakes backing full-flow handler tests
// ============================================================================

// stubUserRepo serves one fixed account.
type stubUserRepo struct {
	mu           sync.Mutex
	user         entity.User
	passwordHash string
	unlocked     bool
}

func (r *stubUserRepo) GetByID(ctx context.Context, id uint) (*entity.User, error) {
	if id != r.user.ID {
		return nil, apperrors.ErrNotFound
	}
	u := r.user
	return &u, nil
}

func (r *stubUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	if email != r.user.Email {
		return nil, apperrors.ErrNotFound
	}
	u := r.user
	return &u, nil
}

func (r *stubUserRepo) UpdatePasswordHash(ctx context.Context, userID uint, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passwordHash = passwordHash
	return nil
}

func (r *stubUserRepo) UpdateProfile(ctx context.Context, userID uint, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := updates["investment_enabled_at"]; ok {
		r.unlocked = true
	}
	return nil
}

// stubChallengeStore is a minimal in-memory challenge repository.
type stubChallengeStore struct {
	mu         sync.Mutex
	challenges []*entity.Challenge
}

func (s *stubChallengeStore) Create(ctx context.Context, challenge *entity.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, c := range s.challenges {
		if c.SubjectID == challenge.SubjectID && c.Purpose == challenge.Purpose && c.ConsumedAt == nil && c.SupersededAt == nil {
			at := now
			c.SupersededAt = &at
		}
	}
	s.challenges = append(s.challenges, challenge)
	return nil
}

func (s *stubChallengeStore) ConsumeIfValid(ctx context.Context, digest string, purpose entity.ChallengePurpose, now time.Time) (uint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.challenges {
		if c.SecretDigest != digest || c.Purpose != purpose {
			continue
		}
		if !c.IsLive(now) {
			return 0, false, nil
		}
		at := now
		c.ConsumedAt = &at
		return c.SubjectID, true, nil
	}
	return 0, false, nil
}

func (s *stubChallengeStore) Invalidate(ctx context.Context, digest string) error {
	return nil
}

func (s *stubChallengeStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

// recordingEmail captures delivered secrets.
type recordingEmail struct {
	mu     sync.Mutex
	secret string
}

func (e *recordingEmail) SendResetLink(ctx context.Context, toEmail, token, idempotencyKey string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.secret = token
	return nil
}

func (e *recordingEmail) SendOtp(ctx context.Context, toEmail, code, idempotencyKey string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.secret = code
	return nil
}

func (e *recordingEmail) get() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.secret
}

// awaitSecret waits for the background issuance pipeline to deliver.
func awaitSecret(t *testing.T, email *recordingEmail) string {
	t.Helper()
	require.Eventually(t, func() bool { return email.get() != "" },
		2*time.Second, 5*time.Millisecond, "challenge delivery did not complete")
	return email.get()
}

func newTestHandler(t *testing.T) (*ChallengeHandler, *stubUserRepo, *recordingEmail) {
	t.Helper()

	users := &stubUserRepo{user: entity.User{ID: 42, Email: "client@bank.test", PasswordHash: "$2a$10$old"}}
	store := &stubChallengeStore{}
	email := &recordingEmail{}

	directory, err := service.NewAccountDirectory(users)
	require.NoError(t, err)
	issuer, err := service.NewChallengeIssuer(directory, store, nil, service.NewSecretGenerator(), email, nil)
	require.NoError(t, err)
	verifier, err := service.NewChallengeVerifier(store)
	require.NoError(t, err)

	return NewChallengeHandler(issuer, verifier, directory), users, email
}

// ============================================================================
// Request validation tests
// ============================================================================

func TestRequestChallenge_ValidationErrors(t *testing.T) {
	handler := &ChallengeHandler{} // validation fails before services are touched

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
	}{
		{
			name:       "empty body",
			body:       nil,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing identifier",
			body:       map[string]string{"purpose": "password_reset"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "identifier not an email",
			body:       map[string]string{"identifier": "not-an-email", "purpose": "password_reset"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing purpose",
			body:       map[string]string{"identifier": "client@bank.test"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown purpose",
			body:       map[string]string{"identifier": "client@bank.test", "purpose": "signup"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestGinContext("POST", "/api/challenges/request", tt.body)
			handler.RequestChallenge(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := parseJSONResponse(t, w)
			assert.Contains(t, resp["error"], "Invalid request data")
		})
	}
}

func TestSubmitChallenge_ValidationErrors(t *testing.T) {
	handler := &ChallengeHandler{}

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
	}{
		{
			name:       "empty body",
			body:       nil,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing secret",
			body:       map[string]string{"purpose": "otp_verification"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown purpose",
			body:       map[string]string{"purpose": "signup", "secret": "123456"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "password reset without new password",
			body:       map[string]string{"purpose": "password_reset", "secret": "deadbeef"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "new password too short",
			body:       map[string]string{"purpose": "password_reset", "secret": "deadbeef", "new_password": "123"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestGinContext("POST", "/api/challenges/submit", tt.body)
			handler.SubmitChallenge(c)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

// ============================================================================
// Flow tests
// ============================================================================

func TestRequestChallenge_ResponseIdenticalForUnknownIdentifier(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	bodies := []map[string]string{
		{"identifier": "client@bank.test", "purpose": "password_reset"},
		{"identifier": "nobody@bank.test", "purpose": "password_reset"},
	}

	var responses []string
	for _, body := range bodies {
		c, w := newTestGinContext("POST", "/api/challenges/request", body)
		handler.RequestChallenge(c)

		assert.Equal(t, http.StatusAccepted, w.Code)
		responses = append(responses, w.Body.String())
	}

	// Existence of the account must not be observable in the response.
	assert.Equal(t, responses[0], responses[1])
}

func TestSubmitChallenge_PasswordResetFlow(t *testing.T) {
	handler, users, email := newTestHandler(t)

	c, w := newTestGinContext("POST", "/api/challenges/request",
		map[string]string{"identifier": "client@bank.test", "purpose": "password_reset"})
	handler.RequestChallenge(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	secret := awaitSecret(t, email)

	c, w = newTestGinContext("POST", "/api/challenges/submit",
		map[string]string{"purpose": "password_reset", "secret": secret, "new_password": "brand-new-pass"})
	handler.SubmitChallenge(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseJSONResponse(t, w)
	assert.Equal(t, "verified", resp["status"])
	assert.NotEmpty(t, users.passwordHash)
	assert.NotEqual(t, "$2a$10$old", users.passwordHash)
}

func TestSubmitChallenge_OtpUnlockFlow(t *testing.T) {
	handler, users, email := newTestHandler(t)

	c, w := newTestGinContext("POST", "/api/challenges/request",
		map[string]string{"identifier": "client@bank.test", "purpose": "otp_verification"})
	handler.RequestChallenge(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	secret := awaitSecret(t, email)
	require.Len(t, secret, 6)

	c, w = newTestGinContext("POST", "/api/challenges/submit",
		map[string]string{"purpose": "otp_verification", "secret": secret})
	handler.SubmitChallenge(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseJSONResponse(t, w)
	assert.Equal(t, "verified", resp["status"])
	assert.True(t, users.unlocked)
}

func TestSubmitChallenge_ReplayRejected(t *testing.T) {
	handler, _, email := newTestHandler(t)

	c, w := newTestGinContext("POST", "/api/challenges/request",
		map[string]string{"identifier": "client@bank.test", "purpose": "otp_verification"})
	handler.RequestChallenge(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	secret := awaitSecret(t, email)

	c, w = newTestGinContext("POST", "/api/challenges/submit",
		map[string]string{"purpose": "otp_verification", "secret": secret})
	handler.SubmitChallenge(c)
	require.Equal(t, http.StatusOK, w.Code)

	// The same secret a second time yields the generic rejection.
	c, w = newTestGinContext("POST", "/api/challenges/submit",
		map[string]string{"purpose": "otp_verification", "secret": secret})
	handler.SubmitChallenge(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := parseJSONResponse(t, w)
	assert.Equal(t, "rejected", resp["status"])
}

func TestSubmitChallenge_WrongSecretRejected(t *testing.T) {
	handler, _, _ := newTestHandler(t)

	c, w := newTestGinContext("POST", "/api/challenges/submit",
		map[string]string{"purpose": "otp_verification", "secret": "999999"})
	handler.SubmitChallenge(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := parseJSONResponse(t, w)
	assert.Equal(t, "rejected", resp["status"])
}
