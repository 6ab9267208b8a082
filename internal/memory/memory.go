// Package memory keeps the tutor's dialogue memory: a deduplicated append-only
// log of exchanges and the prompt framing that replays recent exchanges to a
// stateless completion endpoint.
package memory

import "context"

// History records exchanges and supplies recent-context windows.
type History interface {
	Record(ctx context.Context, userMessage, modelResponse string) (RecordResult, error)
	Recent(ctx context.Context, limit int) ([]Exchange, error)
}

// Assembler renders recent exchanges plus a new utterance into one prompt.
type Assembler interface {
	Assemble(recent []Exchange, utterance string) string
}
