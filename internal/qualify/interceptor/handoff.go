package interceptor

import "strings"

// handoffPhrases is the fixed phrase list for human-handoff intent. The check
// runs before any model call so handoff turns never pay for inference; the
// interceptor declines the turn and the separate handoff path takes over.
var handoffPhrases = []string{
	"talk to a human",
	"talk to a person",
	"speak to a human",
	"speak to someone",
	"real person",
	"real human",
	"live agent",
	"human agent",
	"transfer me",
	"connect me to support",
	"talk to sales",
	"speak with an agent",
	"stop the bot",
}

// containsHandoffIntent reports whether the message matches the phrase list.
func containsHandoffIntent(message string) bool {
	msg := strings.ToLower(message)
	for _, phrase := range handoffPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
