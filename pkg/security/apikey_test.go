package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIKeyValidator(t *testing.T) {
	v := NewAPIKeyValidator()

	tests := []struct {
		name  string
		key   string
		valid bool
	}{
		{"empty", "", false},
		{"too short", "abc", false},
		{"alnum", "abcDEF123456", true},
		{"dash underscore", "abc-def_123456", true},
		{"injection", "abcdef12\r\nX-Evil: 1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, v.ValidateAPIKey(tt.key))
		})
	}

	assert.Equal(t, "abcdef12X-Evil1", v.SanitizeAPIKey("  abcdef12\r\nX-Evil: 1 "))
	assert.Equal(t, "abc...xyz", v.MaskAPIKey("abcdefghijxyz"))
	assert.Equal(t, "[***]", v.MaskAPIKey("short"))
	assert.Equal(t, "[empty]", v.MaskAPIKey(""))
}

func TestMaskConfigToken(t *testing.T) {
	in := "/eyJkZWJyaWRJZCI6ImFsbGRlYnJpZCJ9/stream/movie/tt1.json"
	assert.Equal(t, "/*******************/stream/movie/tt1.json", MaskConfigToken(in))
	assert.Equal(t, "/manifest.json", MaskConfigToken("/manifest.json"))
}

func TestMaskURL(t *testing.T) {
	got := MaskURL("https://cdn.example.com/dl/abcdefghijklmnop/file.mkv?token=1234567890")
	assert.Equal(t, "https://cdn.example.com/dl/a******e.mkv?toke******67890", got)
	assert.Equal(t, "[invalid url]", MaskURL("::"))
}
