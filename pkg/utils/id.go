package utils

import "github.com/google/uuid"

// GenerateMessageID returns a unique correlation id for relay-originated
// envelopes.
func GenerateMessageID() string {
	return uuid.NewString()
}
