package chat

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrTooLong     = errors.New("message too long")
	ErrInvalidUTF8 = errors.New("payload is not valid UTF-8")
)

// Encode validates text for a single transport write and returns its wire
// form: the raw UTF-8 bytes, no framing or length prefix.
func Encode(text string, maxLen int) ([]byte, error) {
	if err := CheckLength(text, maxLen); err != nil {
		return nil, err
	}
	if !utf8.ValidString(text) {
		return nil, ErrInvalidUTF8
	}
	return []byte(text), nil
}

// CheckLength reports ErrTooLong when text exceeds maxLen bytes.
func CheckLength(text string, maxLen int) error {
	if len(text) > maxLen {
		return fmt.Errorf("%w (max %d bytes, got %d)", ErrTooLong, maxLen, len(text))
	}
	return nil
}

// Decode turns one received write or notification into message text.
func Decode(payload []byte) (string, error) {
	if !utf8.Valid(payload) {
		return "", ErrInvalidUTF8
	}
	return string(payload), nil
}
