package event

import "github.com/google/uuid"

// IDGenerator produces globally unique event IDs.
// Implemented by UUIDv7Generator (production) and the fixed sequential
// generator in testutil (deterministic replay tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-ordered UUIDv7 identifiers.
// UUIDv7 keeps IDs roughly sortable by creation time, which makes log
// inspection pleasant; ordering guarantees still come from seq only.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
// Falls back to UUIDv4 if the system clock is unusable for v7.
func (UUIDv7Generator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
