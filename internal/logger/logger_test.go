package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVsRedactsCustomerData(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"case_id", "01HX",
		"email", "jo@example.com",
		"api_key", "abc",
		"Postcode", "SW1A 1AA",
		"images", 2,
	})
	assert.Equal(t, []interface{}{
		"case_id", "01HX",
		"email", "[REDACTED]",
		"api_key", "[REDACTED]",
		"Postcode", "[REDACTED]",
		"images", 2,
	}, out)
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	assert.Equal(t, []interface{}{"a", 1, "dangling"}, out)
}
