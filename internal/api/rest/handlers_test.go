package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainerrors "github.com/mkelleher/storefront-sentinel/internal/domain/errors"
	"github.com/mkelleher/storefront-sentinel/internal/service/verification"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, response string) (verification.Result, error) {
	args := m.Called(ctx, response)
	return args.Get(0).(verification.Result), args.Error(1)
}

type mockBlockChecker struct {
	mock.Mock
}

func (m *mockBlockChecker) IsBlocked(ctx context.Context, address string) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

func newTestHandler() (*Handler, *mockVerifier, *mockBlockChecker) {
	verifier := new(mockVerifier)
	blocks := new(mockBlockChecker)
	sessions := verification.NewSessionIssuer([]byte("test-key"), 30*time.Minute, nil)
	return NewHandler(verifier, sessions, blocks, zap.NewNop()), verifier, blocks
}

func postVerify(h *Handler, token string) *httptest.ResponseRecorder {
	form := url.Values{"response": {token}}
	req := httptest.NewRequest(http.MethodPost, "/v1/captcha/verify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "9.9.9.9:4242"
	rec := httptest.NewRecorder()
	h.handleCaptchaVerify(rec, req)
	return rec
}

func TestCaptchaVerify_SuccessSetsSessionCookie(t *testing.T) {
	h, verifier, _ := newTestHandler()
	verifier.On("Verify", mock.Anything, "good-token").Return(verification.ResultVerified, nil)

	rec := postVerify(h, "good-token")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body verifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Verified)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, sessionCookieName, c.Name)
	assert.NotEmpty(t, c.Value)
	assert.True(t, c.Secure)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.LessOrEqual(t, c.MaxAge, int((30 * time.Minute).Seconds()))
}

func TestCaptchaVerify_RejectedGetsNoCookie(t *testing.T) {
	h, verifier, _ := newTestHandler()
	verifier.On("Verify", mock.Anything, "bad-token").Return(verification.ResultRejected, nil)

	rec := postVerify(h, "bad-token")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestCaptchaVerify_ProviderErrorIs503(t *testing.T) {
	h, verifier, _ := newTestHandler()
	verifier.On("Verify", mock.Anything, "token").Return(verification.ResultError,
		domainerrors.NewVerificationTransportError("provider unreachable"))

	rec := postVerify(h, "token")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
}

func TestBlocklistLookup(t *testing.T) {
	h, _, blocks := newTestHandler()
	blocks.On("IsBlocked", mock.Anything, "9.9.9.9").Return(true, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/blocklist/9.9.9.9", nil)
	req.SetPathValue("address", "9.9.9.9")
	rec := httptest.NewRecorder()
	h.handleBlocklistLookup(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body blocklistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Blocked)
	assert.Equal(t, "9.9.9.9", body.Address)
}

func TestBlocklistLookup_StoreFailureIs503(t *testing.T) {
	h, _, blocks := newTestHandler()
	blocks.On("IsBlocked", mock.Anything, "9.9.9.9").
		Return(false, domainerrors.NewStoreUnavailableError("down"))

	req := httptest.NewRequest(http.MethodGet, "/v1/blocklist/9.9.9.9", nil)
	req.SetPathValue("address", "9.9.9.9")
	rec := httptest.NewRecorder()
	h.handleBlocklistLookup(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.handleHealth(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := newIPRateLimiter(1, 1)
	handler := rateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.9.9.9:1000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different address has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "1.2.3.4:1000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientAddress_ForwardedForWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1000"
	req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	assert.Equal(t, "9.9.9.9", clientAddress(req))
}
