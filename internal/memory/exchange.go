package memory

import (
	"crypto/sha256"
	"encoding/hex"
)

// Exchange is one recorded turn of dialogue.
type Exchange struct {
	SequenceID    int64
	UserMessage   string
	ModelResponse string
	ContentHash   string
}

// ContentHash is the dedup key of an exchange: hex SHA-256 of the user message
// concatenated with the model response.
func ContentHash(userMessage, modelResponse string) string {
	sum := sha256.Sum256([]byte(userMessage + modelResponse))
	return hex.EncodeToString(sum[:])
}

// RecordResult reports whether Record stored a new row.
type RecordResult int

const (
	Inserted RecordResult = iota + 1
	AlreadyPresent
)

func (r RecordResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}
