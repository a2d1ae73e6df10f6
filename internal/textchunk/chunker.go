// Package textchunk splits long text into speakable pieces for synthesis requests.
//
// Chunks break after sentence punctuation where possible, then at whitespace, and only
// cut through a word when the window holds neither. Lengths are counted in characters
// (Unicode code points), so Devanagari text is measured the same way as Latin text.
package textchunk

import (
	"strings"
	"unicode"

	"github.com/kippsai/tts-gateway/internal/config"
)

// DefaultMaxChunkLength is the chunk limit used by the synthesis client.
const DefaultMaxChunkLength = 250

// Terminators lists the characters a chunk prefers to end on. Covers Latin punctuation
// plus the Devanagari danda and the ASCII pipe used in its place.
const Terminators = "-.—!?,;:…।|"

// IsTerminator reports whether r ends a sentence or clause.
func IsTerminator(r rune) bool {
	return strings.ContainsRune(Terminators, r)
}

// Chunker binds a validated chunk limit.
type Chunker struct {
	maxChunkLength int
}

// NewChunker returns a Chunker producing chunks of at most maxChunkLength characters.
func NewChunker(maxChunkLength int) (*Chunker, error) {
	if maxChunkLength <= 0 {
		return nil, config.Invalid("max_chunk_length", maxChunkLength, "must be positive")
	}
	return &Chunker{maxChunkLength: maxChunkLength}, nil
}

// Split divides text into trimmed, non-empty chunks in order.
func (c *Chunker) Split(text string) []string {
	var chunks []string

	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= c.maxChunkLength {
			chunks = appendTrimmed(chunks, runes)
			break
		}

		cut := breakPoint(runes[:c.maxChunkLength])
		chunks = appendTrimmed(chunks, runes[:cut])
		runes = trimRunes(runes[cut:])
	}

	return chunks
}

// Split divides text into chunks of at most maxChunkLength characters.
func Split(text string, maxChunkLength int) ([]string, error) {
	c, err := NewChunker(maxChunkLength)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

// breakPoint returns how many runes of window belong to the next chunk.
// Always at least 1, so Split makes progress.
func breakPoint(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if IsTerminator(window[i]) {
			return i + 1
		}
	}
	for i := len(window) - 1; i >= 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i + 1
		}
	}
	return len(window)
}

func appendTrimmed(chunks []string, runes []rune) []string {
	if chunk := strings.TrimSpace(string(runes)); chunk != "" {
		return append(chunks, chunk)
	}
	return chunks
}

func trimRunes(runes []rune) []rune {
	start, end := 0, len(runes)
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return runes[start:end]
}
