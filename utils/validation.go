package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	invalidConfigHeader  = "The provided configuration was not valid:"
	invalidConfigUnknown = "The provided configuration was not valid for an unspecified reason."
)

// FormatValidationMessages turns validation output into one response
// message. A single message is returned as is; several are numbered.
func FormatValidationMessages(msgs []string) string {
	switch len(msgs) {
	case 0:
		return invalidConfigUnknown
	case 1:
		return msgs[0]
	}
	var b strings.Builder
	b.WriteString(invalidConfigHeader)
	for i, m := range msgs {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, m)
	}
	return b.String()
}

// ParseID parses a path id as a UUID.
func ParseID(raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
