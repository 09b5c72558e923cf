package processor

import (
	"fmt"
	"strings"

	"chatwidget_backend/internal/qualify/domain"
)

const qualifySystemPrompt = `You are the qualification assistant inside a website chat widget.
You are in the middle of asking the visitor a short series of qualifying questions.
Given the active question and the visitor's newest message, decide ONE action and draft the reply in one pass.

Actions:
- "accept": the message answers the question (even partially or negatively). Extract the answer.
- "skip": the visitor declines or clearly wants to move on. Do not pressure them.
- "followup": the visitor did not understand; re-ask using the followup phrasing (only if one is listed below).
- "probe": the visitor still did not understand after the followup; use the probe phrasing (only if one is listed below).
- "redirect": the message is off-topic small talk; answer briefly, then steer back to the question.

Rules:
- If an acceptance criterion is given and the action is "accept", set "qualified" to whether the extracted answer meets it. Otherwise leave "qualified" null.
- Set "is_uncertain" true when the visitor answers but is unsure ("not sure", "maybe").
- "response" must never be empty. When accepting and a next question is listed, the response must acknowledge the answer and ask the next question. When accepting the last question, acknowledge and close warmly.
- Never mention qualifying, scoring, or criteria to the visitor.

Respond with a single JSON object:
{"intent": string, "extracted_answer": string|null, "is_uncertain": boolean, "qualified": boolean|null, "action": "accept"|"skip"|"followup"|"probe"|"redirect", "response": string, "reasoning": string}`

func buildQualifyPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Active question: %s\n", req.Question.Text)
	if req.Question.QualifiedResponse != "" {
		fmt.Fprintf(&b, "Acceptance criterion: %s\n", req.Question.QualifiedResponse)
	}
	if req.Question.Followup != "" {
		fmt.Fprintf(&b, "Followup phrasing: %s\n", req.Question.Followup)
	}
	if req.Question.Probe != "" {
		fmt.Fprintf(&b, "Probe phrasing: %s\n", req.Question.Probe)
	}
	fmt.Fprintf(&b, "Rephrase attempts so far: %d\n", req.RetryCount)

	if req.IsLast {
		b.WriteString("This is the LAST question.\n")
	} else if req.NextQuestion != nil {
		fmt.Fprintf(&b, "Next question (for your transition): %s\n", req.NextQuestion.Text)
	}

	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	if len(history) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Text)
		}
	}

	fmt.Fprintf(&b, "\nVisitor's new message: %s\n", req.Message)
	return b.String()
}

const matchSystemPrompt = `You scan a piece of visitor conversation for answers to questions the visitor previously skipped.
For each listed question, decide whether the text genuinely answers it. Only report real answers; never infer or guess.
Score confidence from 0 to 1: 1.0 means the text directly and unambiguously answers the question.

Respond with a single JSON object:
{"matches": [{"question_index": number, "answer": string, "confidence": number}]}
Return {"matches": []} when nothing matches.`

func buildMatchPrompt(questions []domain.Question, indices []int, text string) string {
	var b strings.Builder

	b.WriteString("Previously skipped questions:\n")
	for _, idx := range indices {
		if idx < 0 || idx >= len(questions) {
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n", idx, questions[idx].Text)
	}

	b.WriteString("\nConversation text to scan:\n")
	b.WriteString(text)
	return b.String()
}
