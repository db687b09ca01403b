package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/account-recovery/internal/usecase"
)

const (
	msgResetRequested  = "If the email exists, you will receive a verification code"
	msgCodeVerified    = "Code verified successfully"
	msgPasswordUpdated = "Password updated successfully"
	msgCodeResent      = "Code resent successfully"
	msgInvalidCode     = "Invalid or expired code"
	msgDeliveryFailed  = "Could not send the email"
	msgEmailRequired   = "Email is required"
)

// PasswordHandler exposes the password recovery endpoints.
type PasswordHandler struct {
	reset *usecase.PasswordResetService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(reset *usecase.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{reset: reset}
}

// RegisterRoutes binds the /auth/password routes behind the given middlewares.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup, middlewares ...gin.HandlerFunc) {
	r.POST("/request-reset", chain(middlewares, h.RequestReset)...)
	r.POST("/verify-code", chain(middlewares, h.VerifyCode)...)
	r.POST("/reset-password", chain(middlewares, h.ResetPassword)...)
	r.POST("/resend-code", chain(middlewares, h.ResendCode)...)
}

func recoveryErrorCases() []ErrorCase {
	return []ErrorCase{
		{Err: usecase.ErrValidation, Status: http.StatusBadRequest},
		{Err: usecase.ErrInvalidOrExpiredCode, Status: http.StatusBadRequest, Message: msgInvalidCode},
		{Err: usecase.ErrDeliveryFailed, Status: http.StatusInternalServerError, Message: msgDeliveryFailed},
	}
}

// RequestReset godoc
// @Summary Request a password reset code
// @Description Always answers with the same message whether or not the account exists.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Account email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/password/request-reset [post]
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, msgEmailRequired))
		return
	}

	if err := h.reset.RequestReset(c.Request.Context(), req.Email); err != nil {
		RespondWithMappedError(c, err, recoveryErrorCases(), http.StatusInternalServerError, msgInternalError)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: msgResetRequested})
}

// VerifyCode godoc
// @Summary Check a reset code without consuming it
// @Tags Password
// @Accept json
// @Produce json
// @Param request body VerifyCodeRequest true "Email and code"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Router /auth/password/verify-code [post]
func (h *PasswordHandler) VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Email and code are required"))
		return
	}

	if err := h.reset.VerifyCode(c.Request.Context(), req.Email, req.Code); err != nil {
		RespondWithMappedError(c, err, recoveryErrorCases(), http.StatusInternalServerError, msgInternalError)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: msgCodeVerified})
}

// ResetPassword godoc
// @Summary Set a new password with a reset code
// @Tags Password
// @Accept json
// @Produce json
// @Param request body ResetPasswordRequest true "Email, code and new password"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Router /auth/password/reset-password [post]
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Email, code and new password are required"))
		return
	}

	err := h.reset.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		Email:       req.Email,
		Code:        req.Code,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		RespondWithMappedError(c, err, recoveryErrorCases(), http.StatusInternalServerError, msgInternalError)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: msgPasswordUpdated})
}

// ResendCode godoc
// @Summary Resend the reset code
// @Description Re-sends the active code when it was issued recently, otherwise issues a new one.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body EmailRequest true "Account email"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/password/resend-code [post]
func (h *PasswordHandler) ResendCode(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, msgEmailRequired))
		return
	}

	if err := h.reset.ResendCode(c.Request.Context(), req.Email); err != nil {
		RespondWithMappedError(c, err, recoveryErrorCases(), http.StatusInternalServerError, msgInternalError)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: msgCodeResent})
}
