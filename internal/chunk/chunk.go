// Package chunk splits oversized reply text into pieces that fit a
// size-limited output channel.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// DefaultLimit is the transmission size limit of the output channel.
const DefaultLimit = 2000

// Split cuts text into ordered chunks of at most limit bytes, preferring to
// break after a newline and hard-splitting only when a single line exceeds
// the limit. Newlines stay attached to the chunk they terminate, so
// concatenating the chunks reproduces text exactly. Text within the limit
// comes back as a single chunk. Pure and deterministic.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	rest := text
	for len(rest) > limit {
		cut := limit
		if i := strings.LastIndexByte(rest[:limit], '\n'); i >= 0 {
			cut = i + 1 // keep the newline with the leading chunk
		} else {
			// Never cut inside a multi-byte rune.
			for cut > 0 && !utf8.RuneStart(rest[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		chunks = append(chunks, rest[:cut])
		rest = rest[cut:]
	}
	if len(rest) > 0 {
		chunks = append(chunks, rest)
	}
	return chunks
}
