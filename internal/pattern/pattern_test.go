package pattern

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	re, err := Compile(`IBAN: (\w+)`, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"IBAN: DE123", "DE123"}, re.FindStringSubmatch("x IBAN: DE123 y"))
}

func TestCompile_CaseInsensitive(t *testing.T) {
	re, err := Compile(`rewe`, true)
	require.NoError(t, err)
	assert.True(t, re.MatchString("REWE Markt"))
}

func TestCompile_TooLong(t *testing.T) {
	_, err := Compile(strings.Repeat("a", MaxPatternLength+1), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(`(unclosed`, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compiling pattern")
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "short", Subject("short"))
	assert.Len(t, Subject(strings.Repeat("x", MaxSubjectLength*2)), MaxSubjectLength)
}
