package debrid

import (
	"encoding/json"
	"errors"
	"strings"

	apperrors "github.com/amaumene/gostremiodebrid/internal/errors"
)

// APIError is the error object the gateway embeds in a response body.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code,omitempty"`
}

func (e *APIError) Error() string {
	payload, _ := json.Marshal(struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{e.Code, e.Message})
	return "StremThru API error: " + string(payload)
}

// AnalyzeError maps a gateway failure to an error type. Structured codes win
// over message matching, and anything unmatched is NOT_READY. Gateway wording
// is not a stable contract so matching is best effort.
func AnalyzeError(err error) string {
	if err == nil {
		return apperrors.ErrorTypeNotReady
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if apiErr.Code == "FORBIDDEN" {
			switch {
			case containsAny(msg, "new location", "new device", "email has been sent"):
				return apperrors.ErrorTypeTwoFactorAuth
			case containsAny(msg, "expired", "invalid token"):
				return apperrors.ErrorTypeExpiredAPIKey
			default:
				return apperrors.ErrorTypeAccessDenied
			}
		}
		if apiErr.Code == "PAYMENT_REQUIRED" || strings.Contains(msg, "premium") {
			return apperrors.ErrorTypeNotPremium
		}
		if apiErr.Code == "UNAUTHORIZED" || apiErr.Code == "INVALID_CREDENTIALS" || strings.Contains(msg, "invalid key") {
			return apperrors.ErrorTypeAccessDenied
		}
	}

	msg := err.Error()
	switch {
	case containsAny(msg, "premium", "subscription"):
		return apperrors.ErrorTypeNotPremium
	case containsAny(msg, "expired", "invalid token"):
		return apperrors.ErrorTypeExpiredAPIKey
	case containsAny(msg, "email has been sent", "verification", "two factor", "2FA"):
		return apperrors.ErrorTypeTwoFactorAuth
	case containsAny(msg, "invalid key", "unauthorized", "access denied"):
		return apperrors.ErrorTypeAccessDenied
	}
	return apperrors.ErrorTypeNotReady
}

// classify turns any gateway failure into a StreamError. Errors that are
// already classified pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *apperrors.StreamError
	if errors.As(err, &se) {
		return err
	}
	return apperrors.NewStreamError(AnalyzeError(err), "stremthru "+op+" failed", err)
}

// isAuthFailure reports error types that make every further call pointless.
func isAuthFailure(errorType string) bool {
	switch errorType {
	case apperrors.ErrorTypeExpiredAPIKey,
		apperrors.ErrorTypeAccessDenied,
		apperrors.ErrorTypeNotPremium,
		apperrors.ErrorTypeTwoFactorAuth:
		return true
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
