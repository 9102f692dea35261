package messaging

import "strings"

// conversationSeparator joins the two participant ids.
// Underscore is not produced by the platform's id generator, so the
// resulting key cannot collide with another pair.
const conversationSeparator = "_"

// ConversationID derives the stable identifier of a two-party thread.
// It is symmetric: ConversationID(a, b) == ConversationID(b, a).
// The id is only a grouping key; the authoritative state stays on the
// (SenderID, ReceiverID) pair of each message.
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + conversationSeparator + b
}

// SameConversation reports whether a message belongs to the thread
// between the two given participants, in either direction.
func SameConversation(m Message, a, b string) bool {
	return ConversationID(m.SenderID, m.ReceiverID) == ConversationID(a, b)
}

// ParseConversationID splits a conversation id back into its sorted pair.
func ParseConversationID(id string) (string, string, bool) {
	parts := strings.SplitN(id, conversationSeparator, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
