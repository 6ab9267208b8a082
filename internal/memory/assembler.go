package memory

import "strings"

// StandardAssembler frames prior exchanges as "User:"/"Teacher:" line pairs
// and ends with an open "Teacher:" marker for the next reply.
type StandardAssembler struct{}

// Assemble builds the prompt: history pairs in order, then the new utterance.
func (a *StandardAssembler) Assemble(recent []Exchange, utterance string) string {
	var b strings.Builder
	for _, ex := range recent {
		b.WriteString("User: ")
		b.WriteString(ex.UserMessage)
		b.WriteString("\nTeacher: ")
		b.WriteString(ex.ModelResponse)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(utterance)
	b.WriteString("\nTeacher:")
	return b.String()
}
