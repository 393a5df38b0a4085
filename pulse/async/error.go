package async

import (
	"unicode/utf8"

	"github.com/teranos/newsdesk/errors"
)

// ErrJobNotFound is returned for unknown job ids
var ErrJobNotFound = errors.New("job not found")

// ErrHandlerNotRegistered is returned when a job names an operation no handler serves
var ErrHandlerNotRegistered = errors.New("no handler registered for operation type")

// maxLastErrorLen caps last_error in bytes
const maxLastErrorLen = 500

// itemError formats an item failure for last_error
func itemError(itemID string, err error) string {
	msg := itemID + ": " + err.Error()
	if len(msg) <= maxLastErrorLen {
		return msg
	}
	cut := maxLastErrorLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "…"
}
