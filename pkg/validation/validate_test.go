package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProjectName(t *testing.T) {
	require.NoError(t, ProjectName("demo"))
	require.NoError(t, ProjectName(""))
	require.Error(t, ProjectName(strings.Repeat("x", 300)))
	require.Error(t, ProjectName(string([]byte{0xff, 0xfe})))
}

func TestMessageText(t *testing.T) {
	require.NoError(t, MessageText("build me a button"))
	require.Error(t, MessageText(strings.Repeat("a", 100_000)))
}

func TestSetRulesOverrides(t *testing.T) {
	defer SetRules(DefaultRules())
	SetRules(Rules{MaxTextLen: 5})
	require.Error(t, MessageText("too long for five"))
	require.NoError(t, MessageText("ok"))

	// zero disables the check
	SetRules(Rules{})
	require.NoError(t, MessageText(strings.Repeat("a", 1_000_000)))
}
