package pkg

import (
	"strings"

	"github.com/google/uuid"
)

const matchIDLength = 8

// GenerateMatchID - generates a short, upper-case match id players can type in.
func GenerateMatchID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")

	return strings.ToUpper(id[:matchIDLength])
}

// GenerateConnectionID - generates a new unique connection id.
func GenerateConnectionID() string {
	return uuid.NewString()
}
