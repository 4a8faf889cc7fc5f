// Package domain contains core concepts of the messaging system.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"strings"

	"campus-dm/errors"
)

// KeySeparator joins the two participant identifiers of a conversation key.
// It is forbidden inside identifiers so a key always parses back to its pair.
const KeySeparator = "|"

// ConversationKey identifies a two-party conversation. It is order independent:
// both participants compute the same key without any server round-trip, so two
// initiators can never end up in two different rooms for the same pair.
type ConversationKey string

// ResolveKey derives the canonical key for a pair of participants.
// The two identifiers are trimmed, sorted lexicographically and joined with
// KeySeparator: ResolveKey(a, b) == ResolveKey(b, a).
func ResolveKey(a, b string) (ConversationKey, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return "", errors.ErrInvalidIdentifier
	}
	if strings.Contains(a, KeySeparator) || strings.Contains(b, KeySeparator) {
		return "", errors.ErrInvalidIdentifier
	}
	if b < a {
		a, b = b, a
	}
	return ConversationKey(a + KeySeparator + b), nil
}

// ParseKey validates a key received from the outside (URL path, socket frame)
// by re-resolving its two halves. Anything that does not round-trip is rejected.
func ParseKey(raw string) (ConversationKey, error) {
	parts := strings.Split(raw, KeySeparator)
	if len(parts) != 2 {
		return "", errors.ErrInvalidIdentifier
	}
	key, err := ResolveKey(parts[0], parts[1])
	if err != nil {
		return "", err
	}
	if string(key) != raw {
		return "", errors.ErrInvalidIdentifier
	}
	return key, nil
}

// Participants returns the two identifiers a key was derived from.
func (k ConversationKey) Participants() (string, string) {
	parts := strings.SplitN(string(k), KeySeparator, 2)
	if len(parts) != 2 {
		return string(k), ""
	}
	return parts[0], parts[1]
}
