package judge

import "strings"

// buildPrompt assembles the user turn for the classifier: persona, recent
// transcript, the message under evaluation, and a closing instruction that
// names exactly the parts that were supplied.
func buildPrompt(c Context, subject string) string {
	var b strings.Builder
	var supplied []string

	if c.PersonaText != "" {
		b.WriteString("Character setting:\n")
		b.WriteString(c.PersonaText)
		b.WriteString("\n\n")
		supplied = append(supplied, "the character setting")
	}
	if c.TranscriptText != "" {
		b.WriteString("Recent messages:\n")
		b.WriteString(c.TranscriptText)
		b.WriteString("\n\n")
		supplied = append(supplied, "the recent messages")
	}

	b.WriteString("Message to evaluate:\n")
	b.WriteString(subject)
	b.WriteString("\n\n")

	if len(supplied) > 0 {
		b.WriteString("Considering ")
		b.WriteString(strings.Join(supplied, " and "))
		b.WriteString(", decide whether the assistant should reply to this message.")
	} else {
		b.WriteString("Decide whether the assistant should reply to this message.")
	}
	b.WriteString(` Respond with one JSON object: {"should_reply": true} or {"should_reply": false}`)

	return b.String()
}
