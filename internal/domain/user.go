// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen = 64
	MaxRoomIDLen = 64
)

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

// UserID is the durable identity a client claims; it outlives connections.
type UserID string

// ParseUserID trims and validates a client-supplied identity.
func ParseUserID(raw string) (UserID, error) {
	s := strings.TrimSpace(raw)
	if len(s) == 0 {
		return "", ErrUserIDEmpty
	}
	if len(s) > MaxUserIDLen {
		return "", ErrUserIDTooLong
	}
	return UserID(s), nil
}
