package envutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReaders(t *testing.T) {
	t.Setenv("EU_INT", " 42 ")
	t.Setenv("EU_BAD_INT", "x")
	t.Setenv("EU_FLOAT", "0.5")
	t.Setenv("EU_BOOL", "Yes")
	t.Setenv("EU_LIST", "en, de,,fr ")
	t.Setenv("EU_SECOND", "b")

	assert.Equal(t, 42, Int("EU_INT", 1))
	assert.Equal(t, 1, Int("EU_BAD_INT", 1))
	assert.Equal(t, 7, Int("EU_UNSET", 7))
	assert.InDelta(t, 0.5, Float("EU_FLOAT", 1), 1e-9)
	assert.True(t, Bool("EU_BOOL", false))
	assert.True(t, Bool("EU_UNSET", true))
	assert.Equal(t, []string{"en", "de", "fr"}, List("EU_LIST", ""))
	assert.Equal(t, []string{"en"}, List("EU_UNSET", "en"))
	assert.Equal(t, "b", First("EU_UNSET", "EU_SECOND"))
	assert.Equal(t, "d", String("EU_UNSET", "d"))
}
