package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/account-recovery/internal/usecase"
)

func respond(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorResponse, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rr := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rr)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/password/request-reset", nil)

	RespondWithMappedError(c, err, recoveryErrorCases(), http.StatusInternalServerError, msgInternalError)

	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rr, body, c
}

func TestRespondWithMappedErrorEchoesValidationMessage(t *testing.T) {
	rr, body, _ := respond(t, &usecase.ValidationError{Field: "email", Message: "email is required"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if body.Success || body.Message != "email is required" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRespondWithMappedErrorHidesDeliveryCause(t *testing.T) {
	err := fmt.Errorf("%w: %w", usecase.ErrDeliveryFailed, errors.New("535 smtp auth failed"))

	rr, body, _ := respond(t, err)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if body.Message != msgDeliveryFailed {
		t.Fatalf("expected delivery message, got %q", body.Message)
	}
}

func TestRespondWithMappedErrorInvalidCode(t *testing.T) {
	rr, body, _ := respond(t, usecase.ErrInvalidOrExpiredCode)
	if rr.Code != http.StatusBadRequest || body.Message != msgInvalidCode {
		t.Fatalf("unexpected response %d %+v", rr.Code, body)
	}
}

func TestRespondWithMappedErrorFallback(t *testing.T) {
	rr, body, c := respond(t, errors.New("pool closed"))
	if rr.Code != http.StatusInternalServerError || body.Message != msgInternalError {
		t.Fatalf("unexpected response %d %+v", rr.Code, body)
	}
	if len(c.Errors) != 1 {
		t.Fatalf("expected the cause to be attached for the access log, got %d", len(c.Errors))
	}
}
