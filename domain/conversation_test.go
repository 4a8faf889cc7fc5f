package domain

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"campus-dm/errors"
)

func Test_ResolveKey_Is_Order_Independent(t *testing.T) {
	req := require.New(t)

	first, err := ResolveKey("s1", "t7")
	req.NoError(err)
	second, err := ResolveKey("t7", "s1")
	req.NoError(err)

	req.Equal(first, second)
	req.Equal(ConversationKey("s1|t7"), first)
}

func Test_ResolveKey_Trims_Whitespace(t *testing.T) {
	req := require.New(t)

	key, err := ResolveKey("  alice ", "bob")
	req.NoError(err)
	req.Equal(ConversationKey("alice|bob"), key)
}

func Test_ResolveKey_Allows_Same_Participant(t *testing.T) {
	req := require.New(t)

	key, err := ResolveKey("alice", "alice")
	req.NoError(err)
	req.Equal(ConversationKey("alice|alice"), key)
}

func Test_ResolveKey_Rejects_Invalid_Identifiers(t *testing.T) {
	tests := []struct {
		description string
		a, b        string
	}{
		{"Should fail if first is empty", "", "bob"},
		{"Should fail if second is empty", "alice", ""},
		{"Should fail if both are whitespace", "   ", "\t"},
		{"Should fail if identifier contains the separator", "ali|ce", "bob"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			req := require.New(t)
			_, err := ResolveKey(tt.a, tt.b)
			req.Error(err)
			req.True(stderrors.Is(err, errors.ErrInvalidIdentifier))
		})
	}
}

func Test_ParseKey_Round_Trips(t *testing.T) {
	req := require.New(t)

	key, err := ParseKey("s1|t7")
	req.NoError(err)
	req.Equal(ConversationKey("s1|t7"), key)

	a, b := key.Participants()
	req.Equal("s1", a)
	req.Equal("t7", b)
}

func Test_ParseKey_Rejects_Non_Canonical_Input(t *testing.T) {
	tests := []struct {
		description string
		raw         string
	}{
		{"Should fail on unsorted halves", "t7|s1"},
		{"Should fail on a single identifier", "s1"},
		{"Should fail on three parts", "a|b|c"},
		{"Should fail on untrimmed halves", " s1|t7"},
		{"Should fail on empty half", "|t7"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			req := require.New(t)
			_, err := ParseKey(tt.raw)
			req.True(stderrors.Is(err, errors.ErrInvalidIdentifier))
		})
	}
}
