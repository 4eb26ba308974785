package app

import (
	"fmt"

	"github.com/google/uuid"
)

// generateID returns a random (version 4) UUID string.
func generateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return id.String(), nil
}
