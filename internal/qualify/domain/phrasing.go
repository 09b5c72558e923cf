package domain

import "math/rand"

// Transition and acknowledgment variants. The model drafts the substantive
// reply; these pad the canned turns (first-question lead-in, and the closing
// line when the model's final response comes back blank) so the widget never
// sounds robotic there.
var (
	FirstQuestionLeadIns = []string{
		"Thanks! Just a couple of quick questions so I can point you to the right person.",
		"Got it. A few quick questions first:",
		"Perfect, thanks. Quick question to get started:",
	}
	CompletionAcks = []string{
		"That's everything I needed, thank you! How else can I help?",
		"Thanks, that covers it. What else can I do for you?",
		"All set, thanks for bearing with me. What can I help you with?",
	}
)

// PickPhrase selects one variant deterministically for a given seed. The
// domain does not need determinism, but tests inject a fixed seed and assert
// membership in the approved set.
func PickPhrase(seed int64, variants []string) string {
	if len(variants) == 0 {
		return ""
	}
	r := rand.New(rand.NewSource(seed))
	return variants[r.Intn(len(variants))]
}
