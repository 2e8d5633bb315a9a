package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"chat-relay/internal/api/middleware"
	"chat-relay/internal/auth"
	"chat-relay/internal/models"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *auth.AuthService
}

func NewAuthHandler(authService *auth.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register godoc
// @Summary Register a new user
// @Description Create an account with a unique username
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "User registration data"
// @Success 201 {object} models.UserResponse "User created successfully"
// @Failure 400 {object} models.ErrorResponse "Invalid input or username already registered"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse("invalid input data", err))
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrUserAlreadyExists) {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("username already registered", nil))
			return
		}
		slog.Error("Register failed", "username", req.Username, "error", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("register failed", nil))
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login godoc
// @Summary User login
// @Description Exchange username and password for a bearer token
// @Tags auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body models.LoginRequest true "User login credentials"
// @Success 200 {object} models.TokenResponse "Access token"
// @Failure 400 {object} models.ErrorResponse "Invalid input data"
// @Failure 401 {object} models.ErrorResponse "Incorrect username or password"
// @Router /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewErrorResponse("invalid input data", err))
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, models.NewErrorResponse("incorrect username or password", nil))
			return
		}
		slog.Error("Login failed", "username", req.Username, "error", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("login failed", nil))
		return
	}

	c.JSON(http.StatusOK, token)
}

// DeleteMe godoc
// @Summary Delete the current account
// @Description Remove the authenticated user with their rooms and messages
// @Tags users
// @Security BearerAuth
// @Success 204 "Account deleted"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /users/me [delete]
func (h *AuthHandler) DeleteMe(c *gin.Context) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.NewErrorResponse("unauthorized", nil))
		return
	}

	if err := h.authService.DeleteAccount(c.Request.Context(), identity.UserID); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, models.NewErrorResponse("user not found", nil))
			return
		}
		slog.Error("Delete account failed", "userID", identity.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("delete account failed", nil))
		return
	}

	c.Status(http.StatusNoContent)
}
