package domain

import "strings"

// ConversationKey returns the canonical key for the conversation
// between two users, independent of who is sender and who is receiver.
// The two ids are sorted so that {A,B} and {B,A} map to the same key.
func ConversationKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}
