// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"strings"

	"github.com/roosthq/roost/internal/message"
)

const (
	placeholderName = "New Session"
	maxStemLen      = 50
	nameWordCount   = 5
)

// DeriveName names a session after the first five words of its first
// message. A conversation with no content gets the placeholder name.
// Two sessions deriving the same name overwrite each other; this is
// accepted, not guarded against.
func DeriveName(msgs []message.Message) string {
	for _, msg := range msgs {
		words := strings.Fields(msg.Content)
		if len(words) == 0 {
			continue
		}
		if len(words) > nameWordCount {
			words = words[:nameWordCount]
		}
		return strings.Join(words, " ")
	}
	return placeholderName
}

// FileStem sanitizes a session name into a filesystem-safe file stem:
// runs of non-alphanumeric characters collapse to a single underscore,
// leading and trailing underscores are trimmed, and the result is
// capped at 50 characters.
func FileStem(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range name {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !alnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	stem := b.String()
	if len(stem) > maxStemLen {
		stem = strings.TrimRight(stem[:maxStemLen], "_")
	}
	if stem == "" {
		stem = "New_Session"
	}
	return stem
}
