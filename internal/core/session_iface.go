package core

import "github.com/google/uuid"

// ConnID is the opaque handle of one live signaling connection.
// Handles are never reused.
type ConnID string

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}
