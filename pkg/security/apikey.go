package security

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	validKeyPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	unsafeKeyChars    = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	configTokenInPath = regexp.MustCompile(`/eyJ[\w=+\-]+`)
)

// APIKeyValidator provides secure validation and handling of API keys
type APIKeyValidator struct {
	minLength int
	maxLength int
}

// NewAPIKeyValidator creates a new API key validator with reasonable defaults
func NewAPIKeyValidator() *APIKeyValidator {
	return &APIKeyValidator{
		minLength: 8,
		maxLength: 256,
	}
}

// ValidateAPIKey validates API key format and length
func (v *APIKeyValidator) ValidateAPIKey(apiKey string) bool {
	if apiKey == "" {
		return false
	}
	if len(apiKey) < v.minLength || len(apiKey) > v.maxLength {
		return false
	}
	return validKeyPattern.MatchString(apiKey)
}

// SanitizeAPIKey trims whitespace and drops characters that could be used for
// header or query injection.
func (v *APIKeyValidator) SanitizeAPIKey(apiKey string) string {
	return unsafeKeyChars.ReplaceAllString(strings.TrimSpace(apiKey), "")
}

// MaskAPIKey creates a masked version for logging (shows only first/last few chars)
func (v *APIKeyValidator) MaskAPIKey(apiKey string) string {
	if len(apiKey) == 0 {
		return "[empty]"
	}
	if len(apiKey) <= 8 {
		return "[***]"
	}
	return apiKey[:3] + "..." + apiKey[len(apiKey)-3:]
}

// MaskConfigToken hides base64 user configuration segments in a request path.
func MaskConfigToken(path string) string {
	return configTokenInPath.ReplaceAllString(path, "/*******************")
}

// MaskURL keeps scheme and host readable and shortens path and query to
// their first and last five characters.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[invalid url]"
	}
	query := ""
	if u.RawQuery != "" {
		query = "?" + u.RawQuery
	}
	return u.Scheme + "://" + u.Host + cut(u.EscapedPath()) + cut(query)
}

func cut(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 10 {
		return v[:1] + "******"
	}
	return v[:5] + "******" + v[len(v)-5:]
}
