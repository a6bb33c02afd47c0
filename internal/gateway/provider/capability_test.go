package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectCapabilities(t *testing.T) {
	t.Setenv("PROVIDER_TEST_A", "sk-alpha-7890")
	t.Setenv("PROVIDER_TEST_B", "  sk-bravo-4321  ")
	t.Setenv("PROVIDER_TEST_EMPTY", "   ")

	caps := DetectCapabilities([]string{
		"PROVIDER_TEST_A",
		"PROVIDER_TEST_A", // duplicate
		" PROVIDER_TEST_B ",
		"PROVIDER_TEST_EMPTY",
		"PROVIDER_TEST_ABSENT",
		"",
	})

	assert.True(t, caps.Has("PROVIDER_TEST_A"))
	assert.True(t, caps.Has("PROVIDER_TEST_B"))
	assert.False(t, caps.Has("PROVIDER_TEST_EMPTY"))
	assert.False(t, caps.Has("PROVIDER_TEST_ABSENT"))

	key, ok := caps.Key("PROVIDER_TEST_B")
	assert.True(t, ok)
	assert.Equal(t, "sk-bravo-4321", key)

	_, ok = caps.Key("PROVIDER_TEST_ABSENT")
	assert.False(t, ok)
}

func TestCapabilitiesSummary(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		caps := DetectCapabilities(nil)
		assert.Equal(t, "no credentials detected", caps.Summary())
	})

	t.Run("Masked And Sorted", func(t *testing.T) {
		t.Setenv("PROVIDER_TEST_Z", "sk-zulu-9999")
		t.Setenv("PROVIDER_TEST_A", "sk-alpha-7890")
		caps := DetectCapabilities([]string{"PROVIDER_TEST_Z", "PROVIDER_TEST_A"})

		assert.Equal(t, "PROVIDER_TEST_A=****7890 PROVIDER_TEST_Z=****9999", caps.Summary())
	})
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****1234", maskKey("sk-test-1234"))
	assert.Equal(t, "****", maskKey("abc"))
	assert.Equal(t, "****", maskKey(""))
}
