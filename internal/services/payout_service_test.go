package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMSISDNPattern(t *testing.T) {
	valid := []string{"254712345678", "254112345678", "254799999999"}
	for _, v := range valid {
		assert.True(t, msisdnPattern.MatchString(v), v)
	}

	invalid := []string{
		"0712345678",    // local format
		"254812345678",  // unsupported prefix
		"25471234567",   // too short
		"2547123456789", // too long
		"+254712345678", // leading plus
		"25471234567a",
	}
	for _, v := range invalid {
		assert.False(t, msisdnPattern.MatchString(v), v)
	}
}

func TestVerificationCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := verificationCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
		seen[code] = true
	}
	// 50 draws from a million values colliding every time would mean a broken
	// generator.
	assert.Greater(t, len(seen), 1)
}
