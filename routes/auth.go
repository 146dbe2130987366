package routes

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"finite-life/finitelife/database"
	"finite-life/finitelife/middleware"
	"finite-life/finitelife/services"

	"github.com/gin-gonic/gin"
)

// SessionCookie describes the cookie that carries the session token for browsers
type SessionCookie struct {
	Name   string
	Secure bool
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type magicLinkRequest struct {
	Email string `json:"email"`
	Next  string `json:"next"`
}

type verifyRequest struct {
	TokenHash string `json:"token_hash"`
	Type      string `json:"type"`
}

type exchangeRequest struct {
	Code string `json:"code"`
}

func RegisterAuthRoutes(router *gin.Engine, db *database.Database, authService services.AuthServiceInterface, cookie SessionCookie) {
	group := router.Group("/api/v1/auth")
	{
		group.POST("/signup", func(c *gin.Context) { SignUp(c, db, authService) })
		group.POST("/login", func(c *gin.Context) { Login(c, db, authService, cookie) })
		group.POST("/magic-link", func(c *gin.Context) { SendMagicLink(c, db, authService) })
		group.POST("/verify", func(c *gin.Context) { VerifyOtp(c, db, authService, cookie) })
		group.POST("/exchange", func(c *gin.Context) { ExchangeAuthCode(c, db, authService, cookie) })

		authenticated := group.Group("")
		authenticated.Use(middleware.AuthMiddleware(db, authService, cookie.Name))
		authenticated.POST("/code", func(c *gin.Context) { IssueAuthCode(c, db, authService) })
		authenticated.POST("/logout", func(c *gin.Context) { Logout(c, db, authService, cookie) })
	}

	router.GET("/auth/callback", func(c *gin.Context) { AuthCallback(c, db, authService, cookie) })
}

func SignUp(c *gin.Context, db *database.Database, authService services.AuthServiceInterface) {
	var request credentialsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := authService.SignUp(db, request.Email, request.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user":    user,
		"message": "Check your email to confirm your account",
	})
}

func Login(c *gin.Context, db *database.Database, authService services.AuthServiceInterface, cookie SessionCookie) {
	var request credentialsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := authService.SignIn(db, request.Email, request.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	setSessionCookie(c, cookie, session)
	c.JSON(http.StatusOK, session)
}

func SendMagicLink(c *gin.Context, db *database.Database, authService services.AuthServiceInterface) {
	var request magicLinkRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := authService.SendMagicLink(db, request.Email, SafeRedirect(request.Next)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Check your email for the sign in link"})
}

func VerifyOtp(c *gin.Context, db *database.Database, authService services.AuthServiceInterface, cookie SessionCookie) {
	var request verifyRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := authService.VerifyOtp(db, request.TokenHash, request.Type)
	if err != nil {
		respondError(c, err)
		return
	}
	setSessionCookie(c, cookie, session)
	c.JSON(http.StatusOK, session)
}

func ExchangeAuthCode(c *gin.Context, db *database.Database, authService services.AuthServiceInterface, cookie SessionCookie) {
	var request exchangeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := authService.ExchangeAuthCode(db, request.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	setSessionCookie(c, cookie, session)
	c.JSON(http.StatusOK, session)
}

// IssueAuthCode hands a signed in client a short-lived code another client can
// exchange for its own session
func IssueAuthCode(c *gin.Context, db *database.Database, authService services.AuthServiceInterface) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	code, err := authService.IssueAuthCode(db, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": code})
}

func Logout(c *gin.Context, db *database.Database, authService services.AuthServiceInterface, cookie SessionCookie) {
	claimsValue, _ := c.Get("claims")
	claims, _ := claimsValue.(*services.JWTClaims)

	if err := authService.SignOut(db, claims); err != nil {
		respondError(c, err)
		return
	}
	clearSessionCookie(c, cookie)
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// AuthCallback finishes an email link or an auth-code hand-off in the browser. It
// sets the session cookie and redirects to next, or to the login page with the
// error.
func AuthCallback(c *gin.Context, db *database.Database, authService services.AuthServiceInterface, cookie SessionCookie) {
	next := SafeRedirect(c.Query("next"))

	var (
		session services.AuthSession
		err     error
	)
	switch {
	case c.Query("code") != "":
		session, err = authService.ExchangeAuthCode(db, c.Query("code"))
	case c.Query("token_hash") != "" && c.Query("type") != "":
		session, err = authService.VerifyOtp(db, c.Query("token_hash"), c.Query("type"))
	default:
		err = services.ErrInvalidToken
	}

	if err != nil {
		c.Redirect(http.StatusSeeOther, "/login?error="+url.QueryEscape(err.Error()))
		return
	}

	setSessionCookie(c, cookie, session)
	c.Redirect(http.StatusSeeOther, next)
}

// SafeRedirect keeps next only when it is a path on this site
func SafeRedirect(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}

func setSessionCookie(c *gin.Context, cookie SessionCookie, session services.AuthSession) {
	if cookie.Name == "" {
		return
	}
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	if maxAge <= 0 {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.Name, session.Token, maxAge, "/", "", cookie.Secure, true)
}

func clearSessionCookie(c *gin.Context, cookie SessionCookie) {
	if cookie.Name == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.Name, "", -1, "/", "", cookie.Secure, true)
}
