package routes

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"finite-life/finitelife/database"
	"finite-life/finitelife/models"
	"finite-life/finitelife/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	validToken   = "good-token"
	validOtp     = "good-otp"
	validCode    = "good-code"
	testPassword = "secret123"
)

type MockAuthService struct {
	userID     uuid.UUID
	sessionID  uuid.UUID
	signedOut  bool
	magicNext  string
	magicEmail string
}

func newMockAuthService() *MockAuthService {
	return &MockAuthService{userID: uuid.New(), sessionID: uuid.New()}
}

func (m *MockAuthService) session() services.AuthSession {
	return services.AuthSession{
		Token:     validToken,
		ExpiresAt: time.Now().Add(time.Hour),
		User:      models.User{ID: m.userID, Email: "test@example.com"},
	}
}

func (m *MockAuthService) SignUp(db *database.Database, email, password string) (models.User, error) {
	if len(password) < 6 {
		return models.User{}, &services.ValidationError{Field: "password", Rule: "min=6"}
	}
	if email == "taken@example.com" {
		return models.User{}, services.ErrResourceExists
	}
	return models.User{ID: uuid.New(), Email: email}, nil
}

func (m *MockAuthService) SignIn(db *database.Database, email, password string) (services.AuthSession, error) {
	if email == "unconfirmed@example.com" {
		return services.AuthSession{}, services.ErrEmailNotConfirmed
	}
	if password != testPassword {
		return services.AuthSession{}, services.ErrInvalidCredentials
	}
	return m.session(), nil
}

func (m *MockAuthService) SendMagicLink(db *database.Database, email, next string) error {
	m.magicEmail = email
	m.magicNext = next
	return nil
}

func (m *MockAuthService) VerifyOtp(db *database.Database, tokenHash, tokenType string) (services.AuthSession, error) {
	if tokenHash != validOtp || tokenType != "magiclink" {
		return services.AuthSession{}, services.ErrInvalidToken
	}
	return m.session(), nil
}

func (m *MockAuthService) ExchangeAuthCode(db *database.Database, code string) (services.AuthSession, error) {
	if code != validCode {
		return services.AuthSession{}, services.ErrInvalidToken
	}
	return m.session(), nil
}

func (m *MockAuthService) IssueAuthCode(db *database.Database, userID uuid.UUID) (string, error) {
	if userID != m.userID {
		return "", services.ErrUnauthenticated
	}
	return validCode, nil
}

func (m *MockAuthService) SignOut(db *database.Database, claims *services.JWTClaims) error {
	if claims == nil {
		return services.ErrUnauthenticated
	}
	m.signedOut = true
	return nil
}

func (m *MockAuthService) ValidateSession(db *database.Database, tokenString string) (*services.JWTClaims, error) {
	if tokenString != validToken || m.signedOut {
		return nil, services.ErrInvalidToken
	}
	return &services.JWTClaims{
		UserID:           m.userID,
		Email:            "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{ID: m.sessionID.String()},
	}, nil
}

func (m *MockAuthService) ValidateToken(tokenString string) (*services.JWTClaims, error) {
	return m.ValidateSession(nil, tokenString)
}

func (m *MockAuthService) HashPassword(password string) (string, error) {
	return "hashed-" + password, nil
}

func (m *MockAuthService) ComparePasswords(hashedPassword, password string) error {
	if hashedPassword != "hashed-"+password {
		return services.ErrInvalidCredentials
	}
	return nil
}

var testCookie = SessionCookie{Name: "finitelife_session"}

func setupAuthRouter() (*gin.Engine, *MockAuthService) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	mockService := newMockAuthService()
	RegisterAuthRoutes(router, &database.Database{}, mockService, testCookie)
	return router, mockService
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == testCookie.Name {
			return cookie
		}
	}
	return nil
}

func TestSignUpRoute(t *testing.T) {
	router, _ := setupAuthRouter()

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"created", `{"email":"new@example.com","password":"secret123"}`, http.StatusCreated},
		{"short password", `{"email":"new@example.com","password":"abc"}`, http.StatusBadRequest},
		{"existing email", `{"email":"taken@example.com","password":"secret123"}`, http.StatusConflict},
		{"bad json", `{"email":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/api/v1/auth/signup", bytes.NewBufferString(tt.body))
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestLoginRoute(t *testing.T) {
	router, _ := setupAuthRouter()

	t.Run("success sets cookie", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(`{"email":"test@example.com","password":"secret123"}`))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), validToken)

		cookie := sessionCookie(w)
		require.NotNil(t, cookie)
		assert.Equal(t, validToken, cookie.Value)
		assert.True(t, cookie.HttpOnly)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(`{"email":"test@example.com","password":"nope"}`))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Nil(t, sessionCookie(w))
	})

	t.Run("unconfirmed email", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(`{"email":"unconfirmed@example.com","password":"secret123"}`))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "email not confirmed")
	})
}

func TestMagicLinkRoute_SanitizesNext(t *testing.T) {
	router, mockService := setupAuthRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/auth/magic-link", bytes.NewBufferString(`{"email":"test@example.com","next":"https://evil.example.com"}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test@example.com", mockService.magicEmail)
	assert.Equal(t, "/", mockService.magicNext)
}

func TestVerifyAndExchangeRoutes(t *testing.T) {
	router, _ := setupAuthRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/auth/verify", bytes.NewBufferString(`{"token_hash":"good-otp","type":"magiclink"}`))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, sessionCookie(w))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/v1/auth/verify", bytes.NewBufferString(`{"token_hash":"good-otp","type":"signup"}`))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/v1/auth/exchange", bytes.NewBufferString(`{"code":"good-code"}`))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/v1/auth/exchange", bytes.NewBufferString(`{"code":"used"}`))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIssueAuthCodeRoute(t *testing.T) {
	router, _ := setupAuthRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/auth/code", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/v1/auth/code", nil)
	req.Header.Set("Authorization", "Bearer "+validToken)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"code":"good-code"}`, w.Body.String())
}

func TestLogoutRoute(t *testing.T) {
	router, mockService := setupAuthRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: testCookie.Name, Value: validToken})
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockService.signedOut)

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.Equal(t, "", cookie.Value)
	assert.True(t, cookie.MaxAge < 0)

	// The revoked session no longer authenticates
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+validToken)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthCallback(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantLocation string
		wantCookie   bool
	}{
		{"token hash", "token_hash=good-otp&type=magiclink&next=/tasks", "/tasks", true},
		{"auth code", "code=good-code", "/", true},
		{"external next", "code=good-code&next=//evil.example.com", "/", true},
		{"bad token", "token_hash=stale&type=magiclink", "/login?error=" + url.QueryEscape("invalid token"), false},
		{"nothing to redeem", "next=/tasks", "/login?error=" + url.QueryEscape("invalid token"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupAuthRouter()

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/auth/callback?"+tt.query, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, tt.wantLocation, w.Header().Get("Location"))
			assert.Equal(t, tt.wantCookie, sessionCookie(w) != nil)
		})
	}
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/tasks":               "/tasks",
		"/tasks?view=tree":     "/tasks?view=tree",
		"tasks":                "/",
		"//evil.example.com":   "/",
		"/\\evil.example.com":  "/",
		"https://evil.example": "/",
		"javascript:alert(1)":  "/",
	}
	for input, want := range tests {
		assert.Equal(t, want, SafeRedirect(input), input)
	}
}
