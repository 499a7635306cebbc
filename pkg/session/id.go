package session

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// IDLength is the number of characters in a generated session id.
	IDLength = 12

	idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// NewID returns a random session id usable as a directory name.
// Collisions are not retried.
func NewID() (string, error) {
	id, err := gonanoid.Generate(idAlphabet, IDLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return id, nil
}
