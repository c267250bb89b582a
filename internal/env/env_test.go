package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnv(t *testing.T) {
	t.Setenv("ANTISNIPE_TEST_STR", "")
	assert.Equal(t, "def", Env("ANTISNIPE_TEST_STR", "def"))

	t.Setenv("ANTISNIPE_TEST_STR", "value")
	assert.Equal(t, "value", Env("ANTISNIPE_TEST_STR", "def"))
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"unset", "", 7},
		{"valid", "200", 200},
		{"zero falls back", "0", 7},
		{"negative falls back", "-3", 7},
		{"garbage falls back", "abc", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTISNIPE_TEST_INT", tt.raw)
			assert.Equal(t, tt.want, EnvInt("ANTISNIPE_TEST_INT", 7))
		})
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("ANTISNIPE_TEST_BOOL", "true")
	assert.True(t, EnvBool("ANTISNIPE_TEST_BOOL", false))

	t.Setenv("ANTISNIPE_TEST_BOOL", "nope")
	assert.False(t, EnvBool("ANTISNIPE_TEST_BOOL", false))
}
