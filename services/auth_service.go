package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"finite-life/finitelife/broker"
	"finite-life/finitelife/config"
	"finite-life/finitelife/database"
	"finite-life/finitelife/models"
	"finite-life/finitelife/utils/token"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Use the JWTClaims from token package
type JWTClaims = token.JWTClaims

type AuthServiceInterface interface {
	SignUp(db *database.Database, email, password string) (models.User, error)
	SignIn(db *database.Database, email, password string) (AuthSession, error)
	SendMagicLink(db *database.Database, email, next string) error
	VerifyOtp(db *database.Database, tokenHash, tokenType string) (AuthSession, error)
	ExchangeAuthCode(db *database.Database, code string) (AuthSession, error)
	IssueAuthCode(db *database.Database, userID uuid.UUID) (string, error)
	SignOut(db *database.Database, claims *JWTClaims) error
	ValidateSession(db *database.Database, tokenString string) (*JWTClaims, error)
	ValidateToken(tokenString string) (*JWTClaims, error)
	HashPassword(password string) (string, error)
	ComparePasswords(hashedPassword, password string) error
}

// AuthSession is handed to a client after a successful sign in
type AuthSession struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

type credentialsInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type emailInput struct {
	Email string `json:"email" validate:"required,email"`
}

type AuthService struct {
	jwtSecret     []byte
	jwtExpiration time.Duration
	siteURL       string
	magicLinkTTL  time.Duration
	authCodeTTL   time.Duration
	mailer        Mailer
	tracker       *SessionTracker
}

func NewAuthService(cfg config.Config, mailer Mailer, tracker *SessionTracker) *AuthService {
	if mailer == nil {
		mailer = LogMailer{}
	}
	if tracker == nil {
		tracker = NewSessionTracker()
	}
	return &AuthService{
		jwtSecret:     []byte(cfg.JWTSecret),
		jwtExpiration: time.Duration(cfg.JWTExpirationHours) * time.Hour,
		siteURL:       strings.TrimRight(cfg.SiteURL, "/"),
		magicLinkTTL:  time.Duration(cfg.MagicLinkTTLMinutes) * time.Minute,
		authCodeTTL:   time.Duration(cfg.AuthCodeTTLMinutes) * time.Minute,
		mailer:        mailer,
		tracker:       tracker,
	}
}

// Tracker exposes the session tracker fed by this service
func (s *AuthService) Tracker() *SessionTracker {
	return s.tracker
}

// SignUp registers an unconfirmed user and emails a confirmation link
func (s *AuthService) SignUp(db *database.Database, email, password string) (models.User, error) {
	input := credentialsInput{Email: normalizeEmail(email), Password: password}
	if err := validateStruct(input); err != nil {
		return models.User{}, err
	}

	hash, err := s.HashPassword(input.Password)
	if err != nil {
		return models.User{}, err
	}

	tx := db.DB.Begin()
	if tx.Error != nil {
		return models.User{}, backendError(tx.Error)
	}

	var existing int64
	if err := tx.Model(&models.User{}).Where("email = ?", input.Email).Count(&existing).Error; err != nil {
		tx.Rollback()
		return models.User{}, backendError(err)
	}
	if existing > 0 {
		tx.Rollback()
		return models.User{}, ErrResourceExists
	}

	user := models.User{Email: input.Email, PasswordHash: hash}
	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		return models.User{}, backendError(err)
	}

	raw, err := s.createAuthToken(tx, user.ID, models.SignupToken, s.magicLinkTTL)
	if err != nil {
		tx.Rollback()
		return models.User{}, err
	}

	payload := map[string]interface{}{"id": user.ID, "email": user.Email}
	if err := recordEvent(tx, broker.UserCreated, "user", user.ID, payload); err != nil {
		tx.Rollback()
		return models.User{}, err
	}

	if err := tx.Commit().Error; err != nil {
		return models.User{}, backendError(err)
	}

	link := s.callbackLink(url.Values{"token_hash": {raw}, "type": {string(models.SignupToken)}, "next": {"/"}})
	if err := s.mailer.Send(user.Email, "Confirm your email", "Confirm your account: "+link); err != nil {
		log.Printf("Failed to send confirmation email to %s: %v", user.Email, err)
	}

	return user, nil
}

// SignIn checks a password and opens a session
func (s *AuthService) SignIn(db *database.Database, email, password string) (AuthSession, error) {
	email = normalizeEmail(email)
	if err := validateStruct(emailInput{Email: email}); err != nil {
		return AuthSession{}, err
	}
	if password == "" {
		return AuthSession{}, &ValidationError{Field: "password", Rule: "required"}
	}

	var user models.User
	if err := db.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AuthSession{}, ErrInvalidCredentials
		}
		return AuthSession{}, backendError(err)
	}

	if user.PasswordHash == "" || s.ComparePasswords(user.PasswordHash, password) != nil {
		return AuthSession{}, ErrInvalidCredentials
	}
	if !user.IsConfirmed() {
		return AuthSession{}, ErrEmailNotConfirmed
	}

	return s.openSession(db, user)
}

// SendMagicLink emails a one-time sign in link. Unknown addresses get an account
// created on the fly; the link confirms it.
func (s *AuthService) SendMagicLink(db *database.Database, email, next string) error {
	email = normalizeEmail(email)
	if err := validateStruct(emailInput{Email: email}); err != nil {
		return err
	}

	tx := db.DB.Begin()
	if tx.Error != nil {
		return backendError(tx.Error)
	}

	var user models.User
	err := tx.Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{Email: email}
		if err := tx.Create(&user).Error; err != nil {
			tx.Rollback()
			return backendError(err)
		}
		payload := map[string]interface{}{"id": user.ID, "email": user.Email}
		if err := recordEvent(tx, broker.UserCreated, "user", user.ID, payload); err != nil {
			tx.Rollback()
			return err
		}
	case err != nil:
		tx.Rollback()
		return backendError(err)
	}

	raw, err := s.createAuthToken(tx, user.ID, models.MagicLinkToken, s.magicLinkTTL)
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return backendError(err)
	}

	if next == "" {
		next = "/"
	}
	link := s.callbackLink(url.Values{"token_hash": {raw}, "type": {string(models.MagicLinkToken)}, "next": {next}})
	if err := s.mailer.Send(user.Email, "Your sign in link", "Sign in: "+link); err != nil {
		log.Printf("Failed to send magic link to %s: %v", user.Email, err)
	}
	return nil
}

// VerifyOtp redeems an emailed token. Redeeming a signup or magic link token also
// confirms the email address.
func (s *AuthService) VerifyOtp(db *database.Database, tokenHash, tokenType string) (AuthSession, error) {
	if tokenHash == "" {
		return AuthSession{}, &ValidationError{Field: "token_hash", Rule: "required"}
	}
	authType, ok := models.AuthTokenTypeFromString(tokenType)
	if !ok {
		return AuthSession{}, &ValidationError{Field: "type", Rule: "oneof=signup magiclink email code"}
	}
	return s.redeem(db, tokenHash, authType)
}

// ExchangeAuthCode trades a short-lived code for a session
func (s *AuthService) ExchangeAuthCode(db *database.Database, code string) (AuthSession, error) {
	if code == "" {
		return AuthSession{}, &ValidationError{Field: "code", Rule: "required"}
	}
	return s.redeem(db, code, models.AuthCodeToken)
}

// IssueAuthCode creates a code another client can exchange for its own session
func (s *AuthService) IssueAuthCode(db *database.Database, userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", ErrUnauthenticated
	}

	tx := db.DB.Begin()
	if tx.Error != nil {
		return "", backendError(tx.Error)
	}

	raw, err := s.createAuthToken(tx, userID, models.AuthCodeToken, s.authCodeTTL)
	if err != nil {
		tx.Rollback()
		return "", err
	}

	if err := tx.Commit().Error; err != nil {
		return "", backendError(err)
	}
	return raw, nil
}

// SignOut revokes the session behind claims
func (s *AuthService) SignOut(db *database.Database, claims *JWTClaims) error {
	if claims == nil {
		return ErrUnauthenticated
	}
	sessionID, err := claims.SessionID()
	if err != nil {
		return ErrInvalidToken
	}

	tx := db.DB.Begin()
	if tx.Error != nil {
		return backendError(tx.Error)
	}

	result := tx.Model(&models.Session{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", sessionID, claims.UserID).
		Update("revoked_at", time.Now().UTC())
	if result.Error != nil {
		tx.Rollback()
		return backendError(result.Error)
	}

	if result.RowsAffected > 0 {
		payload := map[string]interface{}{"session_id": sessionID}
		if err := recordEvent(tx, broker.SessionEnded, "session", claims.UserID, payload); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return backendError(err)
	}

	s.tracker.SessionEnded(claims.UserID, sessionID)
	return nil
}

// ValidateSession checks the token signature and that its session is still live
func (s *AuthService) ValidateSession(db *database.Database, tokenString string) (*JWTClaims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}
	sessionID, err := claims.SessionID()
	if err != nil {
		return nil, ErrInvalidToken
	}

	var session models.Session
	if err := db.DB.First(&session, "id = ? AND user_id = ?", sessionID, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.tracker.SessionExpired(claims.UserID, sessionID)
			return nil, ErrInvalidToken
		}
		return nil, backendError(err)
	}
	if !session.IsActive(time.Now()) {
		s.tracker.SessionExpired(claims.UserID, sessionID)
		return nil, ErrInvalidToken
	}

	s.tracker.SessionStarted(claims.UserID, sessionID, session.ExpiresAt)
	return claims, nil
}

// ValidateToken uses the token utility to validate tokens
func (s *AuthService) ValidateToken(tokenString string) (*JWTClaims, error) {
	return token.ValidateToken(tokenString, s.jwtSecret)
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *AuthService) ComparePasswords(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (s *AuthService) redeem(db *database.Database, raw string, tokenType models.AuthTokenType) (AuthSession, error) {
	tx := db.DB.Begin()
	if tx.Error != nil {
		return AuthSession{}, backendError(tx.Error)
	}

	var authToken models.AuthToken
	if err := tx.First(&authToken, "token_hash = ? AND type = ?", hashToken(raw), tokenType).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AuthSession{}, ErrInvalidToken
		}
		return AuthSession{}, backendError(err)
	}

	now := time.Now().UTC()
	if !authToken.IsUsable(now) {
		tx.Rollback()
		return AuthSession{}, ErrInvalidToken
	}

	result := tx.Model(&models.AuthToken{}).
		Where("id = ? AND consumed_at IS NULL", authToken.ID).
		Update("consumed_at", now)
	if result.Error != nil {
		tx.Rollback()
		return AuthSession{}, backendError(result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return AuthSession{}, ErrInvalidToken
	}

	var user models.User
	if err := tx.First(&user, "id = ?", authToken.UserID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AuthSession{}, ErrUserNotFound
		}
		return AuthSession{}, backendError(err)
	}

	if tokenType != models.AuthCodeToken && !user.IsConfirmed() {
		if err := tx.Model(&user).Update("email_confirmed_at", now).Error; err != nil {
			tx.Rollback()
			return AuthSession{}, backendError(err)
		}
		user.EmailConfirmedAt = &now
		payload := map[string]interface{}{"id": user.ID, "email": user.Email}
		if err := recordEvent(tx, broker.UserConfirmed, "user", user.ID, payload); err != nil {
			tx.Rollback()
			return AuthSession{}, err
		}
	}

	session, err := s.createSession(tx, user)
	if err != nil {
		tx.Rollback()
		return AuthSession{}, err
	}

	if err := tx.Commit().Error; err != nil {
		return AuthSession{}, backendError(err)
	}

	s.tracker.SessionStarted(user.ID, session.sessionID, session.ExpiresAt)
	return session.AuthSession, nil
}

func (s *AuthService) openSession(db *database.Database, user models.User) (AuthSession, error) {
	tx := db.DB.Begin()
	if tx.Error != nil {
		return AuthSession{}, backendError(tx.Error)
	}

	session, err := s.createSession(tx, user)
	if err != nil {
		tx.Rollback()
		return AuthSession{}, err
	}

	if err := tx.Commit().Error; err != nil {
		return AuthSession{}, backendError(err)
	}

	s.tracker.SessionStarted(user.ID, session.sessionID, session.ExpiresAt)
	return session.AuthSession, nil
}

type issuedSession struct {
	AuthSession
	sessionID uuid.UUID
}

func (s *AuthService) createSession(tx *gorm.DB, user models.User) (issuedSession, error) {
	session := models.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(s.jwtExpiration),
	}
	if err := tx.Create(&session).Error; err != nil {
		return issuedSession{}, backendError(err)
	}

	tokenString, err := token.GenerateToken(user.ID, user.Email, session.ID, s.jwtSecret, s.jwtExpiration)
	if err != nil {
		return issuedSession{}, err
	}

	payload := map[string]interface{}{"session_id": session.ID}
	if err := recordEvent(tx, broker.SessionStarted, "session", user.ID, payload); err != nil {
		return issuedSession{}, err
	}

	return issuedSession{
		AuthSession: AuthSession{Token: tokenString, ExpiresAt: session.ExpiresAt, User: user},
		sessionID:   session.ID,
	}, nil
}

// createAuthToken stores the hash of a fresh random token and returns the token
func (s *AuthService) createAuthToken(tx *gorm.DB, userID uuid.UUID, tokenType models.AuthTokenType, ttl time.Duration) (string, error) {
	raw, err := randomToken()
	if err != nil {
		return "", err
	}

	authToken := models.AuthToken{
		UserID:    userID,
		TokenHash: hashToken(raw),
		Type:      tokenType,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := tx.Create(&authToken).Error; err != nil {
		return "", backendError(err)
	}
	return raw, nil
}

func (s *AuthService) callbackLink(params url.Values) string {
	return fmt.Sprintf("%s/auth/callback?%s", s.siteURL, params.Encode())
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var AuthServiceInstance AuthServiceInterface
