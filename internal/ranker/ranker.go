// Package ranker implements the hybrid dense+lexical scoring, filtering,
// thresholding, tie-breaking, and top-k selection that turns a query
// embedding and an index's chunks into ordered search results.
package ranker

import (
	"sort"
	"strings"
	"unicode"

	"github.com/screenager/chatsift/internal/searchindex"
)

// stopWords is the closed English stop-word set the keyword branch ignores.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "if": {}, "then": {}, "else": {},
	"when": {}, "at": {}, "from": {}, "by": {}, "for": {}, "with": {}, "about": {}, "against": {},
	"between": {}, "into": {}, "through": {}, "during": {}, "before": {}, "after": {}, "above": {},
	"below": {}, "to": {}, "up": {}, "down": {}, "in": {}, "out": {}, "on": {}, "off": {}, "over": {},
	"under": {}, "again": {}, "further": {}, "once": {}, "here": {}, "there": {}, "where": {}, "why": {},
	"how": {}, "all": {}, "any": {}, "both": {}, "each": {}, "few": {}, "more": {}, "most": {}, "other": {},
	"some": {}, "such": {}, "no": {}, "nor": {}, "not": {}, "only": {}, "own": {}, "same": {}, "so": {},
	"than": {}, "too": {}, "very": {}, "s": {}, "t": {}, "can": {}, "will": {}, "just": {}, "don": {},
	"should": {}, "now": {}, "are": {}, "is": {}, "was": {}, "were": {}, "have": {}, "has": {}, "had": {},
}

// Result is one ranked search hit.
type Result struct {
	DocID   string
	Content string
	Sender  *string
	Date    *string
	Score   float32
}

// Options controls Search's filtering and selection behavior.
type Options struct {
	TopK          int
	Threshold     float32
	AllowedDocIDs map[string]struct{} // nil means no filter
}

// candidate pairs a scored chunk with its original insertion position so
// the final sort can break ties by ascending insertion order.
type candidate struct {
	pos    int
	chunk  searchindex.Chunk
	hybrid float32
}

// Search scores every eligible chunk in chunks against queryEmbedding and
// query, fuses dense and lexical signals, applies penalties, sorts by
// descending score (ties broken by ascending insertion order), filters by
// threshold, and truncates to TopK.
func Search(chunks []searchindex.Chunk, query string, queryEmbedding []float32, opts Options) []Result {
	if opts.TopK <= 0 || len(chunks) == 0 {
		return nil
	}

	queryTokens := preprocess(query, true)

	candidates := make([]candidate, 0, len(chunks))
	for i, c := range chunks {
		if opts.AllowedDocIDs != nil {
			if _, ok := opts.AllowedDocIDs[c.DocID]; !ok {
				continue
			}
		}

		vectorScore := dot(queryEmbedding, c.Embedding)
		chunkTokens := tokenSet(preprocess(c.Content, false))
		keywordScore := keywordFraction(queryTokens, chunkTokens)

		hybrid := 0.5*vectorScore + 0.5*keywordScore
		hybrid = applyPenalties(hybrid, c.Content, keywordScore)

		candidates = append(candidates, candidate{pos: i, chunk: c, hybrid: hybrid})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].hybrid != candidates[j].hybrid {
			return candidates[i].hybrid > candidates[j].hybrid
		}
		return candidates[i].pos < candidates[j].pos
	})

	results := make([]Result, 0, opts.TopK)
	for _, cand := range candidates {
		if cand.hybrid < opts.Threshold {
			continue
		}
		if len(results) >= opts.TopK {
			break
		}
		results = append(results, Result{
			DocID:   cand.chunk.DocID,
			Content: cand.chunk.Content,
			Sender:  cand.chunk.Sender,
			Date:    cand.chunk.Date,
			Score:   cand.hybrid,
		})
	}
	return results
}

// applyPenalties demotes short semantically-only matches and bare URLs, in
// the documented order.
func applyPenalties(hybrid float32, content string, keywordScore float32) float32 {
	if len(content) < 20 && keywordScore < 0.01 {
		hybrid *= 0.95
	}
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "http") && !strings.ContainsAny(trimmed, " \t\n\r") {
		hybrid *= 0.5
	}
	return hybrid
}

// preprocess lowercases text, splits on ASCII whitespace, strips
// non-alphanumeric characters from each token, drops empties, and
// (optionally) drops stop words.
func preprocess(text string, dropStopWords bool) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := alphanumericOnly(f)
		if tok == "" {
			continue
		}
		if dropStopWords {
			if _, stop := stopWords[tok]; stop {
				continue
			}
		}
		out = append(out, tok)
	}
	return out
}

func alphanumericOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// keywordFraction is the proportion of queryTokens present in chunkTokens.
func keywordFraction(queryTokens []string, chunkTokens map[string]struct{}) float32 {
	if len(queryTokens) == 0 {
		return 0
	}
	matches := 0
	for _, t := range queryTokens {
		if _, ok := chunkTokens[t]; ok {
			matches++
		}
	}
	return float32(matches) / float32(len(queryTokens))
}

// dot computes the dot product of two equal-length unit vectors, which
// equals cosine similarity.
func dot(a, b []float32) float32 {
	var sum float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
