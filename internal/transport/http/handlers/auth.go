package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/account-recovery/internal/transport/http/middleware"
	"github.com/arklim/account-recovery/internal/usecase"
)

const (
	msgInternalError      = "Internal server error"
	msgInvalidCredentials = "Incorrect email or password"
	msgEmailTaken         = "Email is already registered"
)

// AuthHandler exposes registration, login and session endpoints.
type AuthHandler struct {
	auth *usecase.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes binds the /auth routes. registerMiddlewares and loginMiddlewares run ahead
// of their handlers; requireAuth guards the session endpoints.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc, registerMiddlewares, loginMiddlewares []gin.HandlerFunc) {
	r.POST("/register", chain(registerMiddlewares, h.Register)...)
	r.POST("/login", chain(loginMiddlewares, h.Login)...)
	r.GET("/verify", requireAuth, h.Verify)
	r.GET("/me", requireAuth, h.Me)
}

// Register godoc
// @Summary Register a new account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration payload"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Name, email and password are required"))
		return
	}

	result, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrValidation, Status: http.StatusBadRequest},
			{Err: usecase.ErrEmailTaken, Status: http.StatusBadRequest, Message: msgEmailTaken},
		}, http.StatusInternalServerError, msgInternalError)
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{
		Success: true,
		Message: "User registered successfully",
		User:    newUserResponse(result.User),
		Token:   result.Token,
	})
}

// Login godoc
// @Summary Sign in with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Email and password are required"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrValidation, Status: http.StatusBadRequest},
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: msgInvalidCredentials},
		}, http.StatusInternalServerError, msgInternalError)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Success: true,
		Message: "Login successful",
		User:    newUserResponse(result.User),
		Token:   result.Token,
	})
}

// Verify godoc
// @Summary Check a bearer token
// @Tags Authentication
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} UserEnvelope
// @Failure 401 {object} ErrorResponse
// @Router /auth/verify [get]
func (h *AuthHandler) Verify(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.MsgInvalidToken))
		return
	}

	c.JSON(http.StatusOK, UserEnvelope{
		Success: true,
		Message: "Token is valid",
		User:    newUserResponse(*user),
	})
}

// Me godoc
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} UserEnvelope
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, middleware.MsgInvalidToken))
		return
	}

	c.JSON(http.StatusOK, UserEnvelope{Success: true, User: newUserResponse(*user)})
}

func chain(middlewares []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(middlewares)+1)
	out = append(out, middlewares...)
	return append(out, handler)
}
