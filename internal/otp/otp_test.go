package otp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rusenback/perfverse/internal/config"
)

// base32 of the ASCII secret "12345678901234567890" used by RFC 6238.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestGenerate_ReferenceVectors(t *testing.T) {
	cases := []struct {
		unix int64
		code string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}

	for _, tc := range cases {
		code, err := Generate(rfcSecret, time.Unix(tc.unix, 0).UTC(), Options{Digits: 8})
		require.NoError(t, err)
		assert.Equal(t, tc.code, code, "t=%d", tc.unix)
	}
}

func TestGenerate_Defaults(t *testing.T) {
	code, err := Generate(rfcSecret, time.Unix(59, 0), Options{})
	require.NoError(t, err)
	assert.Equal(t, "287082", code)

	// Same 30 second step, same code.
	again, err := Generate(rfcSecret, time.Unix(31, 0), Options{})
	require.NoError(t, err)
	assert.Equal(t, code, again)
}

func TestGenerate_LowercaseSecret(t *testing.T) {
	code, err := Generate("gezdgnbvgy3tqojqgezdgnbvgy3tqojq", time.Unix(59, 0), Options{})
	require.NoError(t, err)
	assert.Equal(t, "287082", code)
}

func TestGenerate_Errors(t *testing.T) {
	_, err := Generate("not base32!", time.Now(), Options{})
	assert.Error(t, err)

	_, err = Generate(rfcSecret, time.Now(), Options{Digits: 7})
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("RUBYGEMS_OTP_SECRET", rfcSecret)
	v, err := FromEnv("RUBYGEMS_OTP_SECRET")
	require.NoError(t, err)
	assert.Equal(t, rfcSecret, v)

	t.Setenv("RUBYGEMS_OTP_SECRET", "")
	_, err = FromEnv("RUBYGEMS_OTP_SECRET")
	assert.True(t, config.IsError(err))

	_, err = FromEnv("")
	assert.True(t, config.IsError(err))
}
