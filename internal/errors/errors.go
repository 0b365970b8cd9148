// Package errors defines custom error types for better error handling and debugging.
// StreamError carries a Type used to pick user-facing behaviour such as the
// fallback video of a failed download.
package errors

import (
	stderrors "errors"
	"fmt"
)

// StreamError represents errors that occur during stream processing
type StreamError struct {
	Type    string
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Error type constants
const (
	ErrorTypeNotReady            = "NOT_READY"
	ErrorTypeExpiredAPIKey       = "EXPIRED_API_KEY"
	ErrorTypeNotPremium          = "NOT_PREMIUM"
	ErrorTypeAccessDenied        = "ACCESS_DENIED"
	ErrorTypeTwoFactorAuth       = "TWO_FACTOR_AUTH"
	ErrorTypeNoIndexerConfigured = "NO_INDEXER_CONFIGURED"
	ErrorTypeNoTorrentInfos      = "NO_TORRENT_INFOS"
	ErrorTypeNoDownload          = "NO_DOWNLOAD_AVAILABLE"
	ErrorTypeUnknownProvider     = "UNKNOWN_PROVIDER"
	ErrorTypeUnsupportedType     = "UNSUPPORTED_TYPE"

	ErrorTypeConfigurationInvalid = "CONFIGURATION_INVALID"
	ErrorTypeInvalidID            = "INVALID_ID"
	ErrorTypeTimeout              = "TIMEOUT"
)

// NewStreamError creates a new StreamError
func NewStreamError(errorType, message string, cause error) *StreamError {
	return &StreamError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

func NewNotReadyError(message string, cause error) *StreamError {
	return NewStreamError(ErrorTypeNotReady, message, cause)
}

func NewExpiredAPIKeyError(message string) *StreamError {
	return NewStreamError(ErrorTypeExpiredAPIKey, message, nil)
}

func NewNotPremiumError(message string) *StreamError {
	return NewStreamError(ErrorTypeNotPremium, message, nil)
}

func NewAccessDeniedError(message string) *StreamError {
	return NewStreamError(ErrorTypeAccessDenied, message, nil)
}

func NewTwoFactorAuthError(message string) *StreamError {
	return NewStreamError(ErrorTypeTwoFactorAuth, message, nil)
}

// NewNoIndexerConfiguredError is returned when no indexer exists at all.
func NewNoIndexerConfiguredError(stremioID string) *StreamError {
	return NewStreamError(ErrorTypeNoIndexerConfigured, fmt.Sprintf("%s: no indexer configured", stremioID), nil)
}

func NewNoTorrentInfosError(contentType, stremioID string) *StreamError {
	return NewStreamError(ErrorTypeNoTorrentInfos,
		fmt.Sprintf("no torrent infos for type %s and id %s", contentType, stremioID), nil)
}

func NewNoDownloadError(contentType, torrentID string) *StreamError {
	return NewStreamError(ErrorTypeNoDownload,
		fmt.Sprintf("no download for type %s and id %s", contentType, torrentID), nil)
}

func NewUnknownProviderError(id string) *StreamError {
	return NewStreamError(ErrorTypeUnknownProvider, fmt.Sprintf("debrid service %q does not exist", id), nil)
}

func NewUnsupportedTypeError(contentType string) *StreamError {
	return NewStreamError(ErrorTypeUnsupportedType, fmt.Sprintf("unsupported type %s", contentType), nil)
}

// NewConfigurationError creates a configuration-related error
func NewConfigurationError(message string, cause error) *StreamError {
	return NewStreamError(ErrorTypeConfigurationInvalid, message, cause)
}

// NewInvalidIDError creates an invalid ID error
func NewInvalidIDError(id string) *StreamError {
	return NewStreamError(ErrorTypeInvalidID, fmt.Sprintf("invalid ID format: %s", id), nil)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string) *StreamError {
	return NewStreamError(ErrorTypeTimeout, fmt.Sprintf("operation timeout: %s", operation), nil)
}

// TypeOf returns the Type of the first StreamError in err's chain, or "".
func TypeOf(err error) string {
	var se *StreamError
	if stderrors.As(err, &se) {
		return se.Type
	}
	return ""
}

// Is reports whether err's chain holds a StreamError of the given type.
func Is(err error, errorType string) bool {
	return err != nil && TypeOf(err) == errorType
}
