// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	t.Setenv("CDICT_TEST_STR", "from-env")
	assert.Equal(t, "from-env", ParseString("CDICT_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", ParseString("CDICT_TEST_STR_MISSING", "fallback"))

	t.Setenv("CDICT_TEST_EMPTY", "")
	assert.Equal(t, "fallback", ParseString("CDICT_TEST_EMPTY", "fallback"))
}

func TestParseInt(t *testing.T) {
	t.Setenv("CDICT_TEST_INT", "42")
	assert.Equal(t, 42, ParseInt("CDICT_TEST_INT", 7))

	t.Setenv("CDICT_TEST_INT_BAD", "not-a-number")
	assert.Equal(t, 7, ParseInt("CDICT_TEST_INT_BAD", 7))

	assert.Equal(t, 7, ParseInt("CDICT_TEST_INT_MISSING", 7))
}

func TestParseDuration(t *testing.T) {
	t.Setenv("CDICT_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, ParseDuration("CDICT_TEST_DUR", time.Minute))

	t.Setenv("CDICT_TEST_DUR_BAD", "ninety")
	assert.Equal(t, time.Minute, ParseDuration("CDICT_TEST_DUR_BAD", time.Minute))
}

func TestParseBool(t *testing.T) {
	cases := map[string]bool{
		"true": true, "1": true, "yes": true, "TRUE": true,
		"false": false, "0": false, "no": false,
	}
	for raw, want := range cases {
		t.Setenv("CDICT_TEST_BOOL", raw)
		assert.Equal(t, want, ParseBool("CDICT_TEST_BOOL", !want), raw)
	}

	t.Setenv("CDICT_TEST_BOOL", "maybe")
	assert.True(t, ParseBool("CDICT_TEST_BOOL", true))
	assert.False(t, ParseBool("CDICT_TEST_BOOL", false))
}

func TestParseFloat(t *testing.T) {
	t.Setenv("CDICT_TEST_FLOAT", "2.5")
	assert.Equal(t, 2.5, ParseFloat("CDICT_TEST_FLOAT", 1.0))

	t.Setenv("CDICT_TEST_FLOAT_BAD", "fast")
	assert.Equal(t, 1.0, ParseFloat("CDICT_TEST_FLOAT_BAD", 1.0))
}
