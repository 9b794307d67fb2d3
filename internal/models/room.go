package models

import (
	"errors"
	"strings"
)

var ErrBadRoomKey = errors.New("malformed room key")

// ParseRoomKey splits a room key back into its channel or dm reference.
// Exactly one of the returned pointers is non-nil on success.
func ParseRoomKey(key string) (channelID, dmRoomID *string, err error) {
	prefix, id, ok := strings.Cut(key, ":")
	if !ok || id == "" {
		return nil, nil, ErrBadRoomKey
	}
	switch prefix {
	case "channel":
		return &id, nil, nil
	case "dm":
		return nil, &id, nil
	default:
		return nil, nil, ErrBadRoomKey
	}
}
