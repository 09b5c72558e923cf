package domain

import (
	"fmt"
	"strings"
)

// Verdict is the terminal qualification result.
type Verdict struct {
	Status    Status
	Reasoning string
}

// Finalize computes the terminal verdict for a full answer list: not_qualified
// when any mandatory question failed its criterion or was skipped, qualified
// otherwise (zero mandatory questions always qualifies). The reasoning string
// enumerates every question with a pass/fail marker. No model call, no
// randomness: invoking it twice for the same list yields the same result, so
// it can be recomputed idempotently from any channel.
func Finalize(answers []Answer) Verdict {
	status := StatusQualified
	var failed []string

	var b strings.Builder
	b.WriteString("Qualification summary:\n")

	for i, a := range answers {
		marker := "PASS"
		switch {
		case a.Skipped():
			marker = "SKIPPED"
		case a.Qualified != nil && !*a.Qualified:
			marker = "FAIL"
		case a.Qualified == nil:
			marker = "UNKNOWN"
		}

		if a.Mandatory && (marker == "FAIL" || marker == "SKIPPED") {
			status = StatusNotQualified
			failed = append(failed, a.Question)
		}

		mandatory := ""
		if a.Mandatory {
			mandatory = ", mandatory"
		}
		fmt.Fprintf(&b, "%d. %q -> %q [%s%s]\n", i+1, a.Question, displayAnswer(a), marker, mandatory)
	}

	if status == StatusNotQualified {
		fmt.Fprintf(&b, "Result: not qualified (mandatory not met: %s)", strings.Join(failed, "; "))
	} else {
		b.WriteString("Result: qualified")
	}

	return Verdict{Status: status, Reasoning: b.String()}
}

func displayAnswer(a Answer) string {
	if a.Skipped() {
		return SkippedPlaceholder
	}
	return a.Answer
}
