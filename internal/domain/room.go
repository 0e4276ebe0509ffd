package domain

import (
	"errors"
	"strings"
)

var (
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
)

type RoomID string

func ParseRoomID(raw string) (RoomID, error) {
	s := strings.TrimSpace(raw)
	if len(s) == 0 {
		return "", ErrRoomIDEmpty
	}
	if len(s) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	return RoomID(s), nil
}
