package moderation

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestModerator(t *testing.T) *Moderator {
	t.Helper()
	m, err := NewModerator([]string{"idiot", "shut up"}, '*', slog.Default())
	require.NoError(t, err)
	return m
}

func Test_Mask_Replaces_Disallowed_Words(t *testing.T) {
	moderator := newTestModerator(t)

	tests := []struct {
		description string
		input       string
		expected    string
	}{
		{
			"Should keep clean text untouched",
			"see you at the library",
			"see you at the library",
		},
		{
			"Should mask a plain occurrence",
			"you idiot",
			"you *****",
		},
		{
			"Should mask regardless of case",
			"you IdIoT",
			"you *****",
		},
		{
			"Should mask leet-speak variants",
			"you 1d10t",
			"you *****",
		},
		{
			"Should mask through punctuation",
			"you i.d.i.o.t!",
			"you *********!",
		},
		{
			"Should mask a multi-word pattern",
			"please shut up now",
			"please ******* now",
		},
		{
			"Should keep the empty string",
			"",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			require.Equal(t, tt.expected, moderator.Mask(tt.input))
		})
	}
}

func Test_Default_Wordlist_Loads(t *testing.T) {
	req := require.New(t)
	words, err := DefaultWords()
	req.NoError(err)
	req.NotEmpty(words)
	req.Contains(words, "idiot")
}
