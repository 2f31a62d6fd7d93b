// Package splitter produces token-bounded chunks from arbitrary text for the
// generic (non-chat) ingestion path. It prefers splitting at paragraph,
// then line, then word boundaries before forcing a mid-word split, and is
// driven by the same token-sizing function the encoder uses so chunks fit
// the model without truncation in normal cases.
package splitter

import "strings"

// MaxChunkTokens is the token budget per chunk.
const MaxChunkTokens = 100

// Sizer reports the number of tokens a string encodes to. It must be
// consistent with the tokenizer used by the encoder.
type Sizer interface {
	Size(text string) (int, error)
}

// Split breaks text into chunks whose token size (per sizer) is at most
// MaxChunkTokens. Chunks never overlap.
func Split(text string, sizer Sizer) ([]string, error) {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var chunks []string
	remaining := text

	for len(remaining) > 0 {
		size, err := sizer.Size(remaining)
		if err != nil {
			return nil, err
		}
		if size <= MaxChunkTokens {
			if trimmed := strings.TrimSpace(remaining); trimmed != "" {
				chunks = append(chunks, trimmed)
			}
			break
		}

		splitAt, err := findSplit(remaining, sizer)
		if err != nil {
			return nil, err
		}
		head := remaining[:splitAt]
		if trimmed := strings.TrimSpace(head); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		remaining = remaining[splitAt:]
	}

	return chunks, nil
}

// findSplit locates the largest prefix of text whose token size fits the
// budget, preferring a paragraph break, then a line break, then a word
// break, over a mid-word split, by scanning boundary candidates from the
// end of a byte-length estimate backwards.
func findSplit(text string, sizer Sizer) (int, error) {
	// Binary-search a byte offset whose token size is within budget, using
	// the growth of token count with text length as a rough monotone
	// estimate, then snap that offset back to the nearest semantic
	// boundary so we never cut a chunk off mid-sentence unnecessarily.
	lo, hi := 1, len(text)
	best := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		size, err := sizer.Size(text[:mid])
		if err != nil {
			return 0, err
		}
		if size <= MaxChunkTokens {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best <= 0 {
		best = 1 // force at least one byte of progress
	}

	window := text[:best]

	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		return idx + 2, nil
	}
	if idx := strings.LastIndex(window, "\n"); idx > 0 {
		return idx + 1, nil
	}
	if idx := strings.LastIndexByte(window, ' '); idx > 0 {
		return idx + 1, nil
	}
	return best, nil
}
