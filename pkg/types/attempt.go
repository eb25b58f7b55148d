package types

import (
	"strconv"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// attemptAlphabet avoids characters that need escaping in file names.
const attemptAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const attemptLength = 8

// NewAttemptID returns a short id for one client attempt.
func NewAttemptID() string {
	id, err := nanoid.Generate(attemptAlphabet, attemptLength)
	if err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return id
}
