package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"github.com/layer-3/walletgate/core"
	"github.com/layer-3/walletgate/service"
	"github.com/rs/zerolog"
)

// challengeFailure is the only body returned for a rejected sign-in message,
// whatever the underlying reason.
const challengeFailure = "signature verification failed"

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	logger      zerolog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, logger zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		logger:      logger,
	}
}

type loginRequest struct {
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type signupRequest struct {
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	UserName  string `json:"userName"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	UserName  string    `json:"userName"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
}

type authResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	User      *userResponse `json:"user"`
}

// Nonce issues a sign-in nonce for the address in the path
func (h *AuthHandlers) Nonce(c *gin.Context) {
	nonce, err := h.authService.Nonce(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.String(http.StatusOK, nonce)
}

// Signup registers a user from a signed message and profile
func (h *AuthHandlers) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	profile := core.Profile{}
	copier.Copy(&profile, &req)

	result, err := h.authService.Signup(c.Request.Context(), req.Message, req.Signature, profile)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newAuthResponse(result))
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Message, req.Signature)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newAuthResponse(result))
}

// CurrentUser returns the user the bearer token was issued to
func (h *AuthHandlers) CurrentUser(c *gin.Context) {
	session := sessionFromContext(c)
	if session == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	user, err := h.authService.CurrentUser(c.Request.Context(), session)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

// Logout revokes the bearer token
func (h *AuthHandlers) Logout(c *gin.Context) {
	token := c.GetString(tokenKey)

	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandlers) writeError(c *gin.Context, err error) {
	switch {
	case core.IsChallengeError(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": challengeFailure})
	case errors.Is(err, core.ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
	case errors.Is(err, core.ErrInvalidProfile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
	case errors.Is(err, core.ErrTokenInvalid), errors.Is(err, core.ErrTokenRevoked):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
	case errors.Is(err, core.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, core.ErrUserAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

func newAuthResponse(result *core.AuthResult) authResponse {
	return authResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      newUserResponse(result.User),
	}
}

func newUserResponse(user *core.User) *userResponse {
	resp := &userResponse{}
	copier.Copy(resp, user)
	resp.ID = user.ID.String()
	return resp
}
