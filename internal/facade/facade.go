// Package facade orchestrates the user-facing operations — load_model,
// add_document, search, and the Index accessors — tying the tokenizer,
// encoder, chat parser, ranker, and index together. The generic splitter is
// not called from here: AddDocument accepts chat exports only.
package facade

import (
	"errors"
	"fmt"
	"strings"

	"github.com/screenager/chatsift/internal/chatparse"
	"github.com/screenager/chatsift/internal/encoder"
	"github.com/screenager/chatsift/internal/ranker"
	"github.com/screenager/chatsift/internal/searchindex"
	"github.com/screenager/chatsift/internal/tokenizer"
)

// Sentinel errors, matched with errors.Is at call sites.
var (
	ErrNoModel       = errors.New("no model loaded")
	ErrNotChatExport = errors.New("content is not a recognized chat export")
	ErrModelLoad     = errors.New("model load failed")
	ErrEncode        = errors.New("embedding a chunk failed")
	ErrSnapshot      = errors.New("snapshot operation failed")
)

// ProgressFunc is invoked synchronously before each chunk is embedded
// during AddDocument. A panic or any misbehavior inside it must not abort
// ingestion — Facade recovers from it and continues.
type ProgressFunc func(i, total int)

// ModelOptions carries the runtime knobs New passes through to the encoder.
type ModelOptions struct {
	OrtLibPath string
	NumThreads int
}

// Facade is the single entry point a host embeds: it owns the Index and the
// (optional) loaded model, and is confined to one goroutine at a time.
type Facade struct {
	index *searchindex.Index

	tok *tokenizer.Adapter
	enc *encoder.Encoder

	opts ModelOptions
}

// New returns an empty, model-less Facade.
func New(opts ModelOptions) *Facade {
	return &Facade{index: searchindex.New(), opts: opts}
}

// LoadModel initializes the tokenizer and encoder from in-memory artifact
// bytes. Calling it again replaces the previously loaded model.
func (f *Facade) LoadModel(weights, tokenizerBytes, configBytes []byte) error {
	tok, err := tokenizer.New(tokenizerBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	cfg, err := encoder.ParseConfig(configBytes)
	if err != nil {
		tok.Close()
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	enc, err := encoder.New(weights, tok, cfg, f.opts.OrtLibPath, f.opts.NumThreads)
	if err != nil {
		tok.Close()
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	if f.enc != nil {
		f.enc.Close()
	}
	if f.tok != nil {
		f.tok.Close()
	}
	f.tok = tok
	f.enc = enc
	return nil
}

// HasModel reports whether LoadModel has succeeded.
func (f *Facade) HasModel() bool {
	return f.enc != nil && f.tok != nil
}

// chatChunk is one message surviving the empty-content filter, in parser
// emission order.
type chatChunk struct {
	content string
	sender  *string
	date    *string
}

// AddDocument parses content as a chat export, embeds each surviving
// message (with its documented context-augmentation), and appends the
// resulting chunks to the Index. progress, if non-nil, is invoked before
// each embedding call; it must not mutate the Facade. Embedding failures
// abort the whole call — no partial ingestion.
func (f *Facade) AddDocument(docID, content string, progress ProgressFunc) error {
	if !f.HasModel() {
		return ErrNoModel
	}
	if !chatparse.IsChatExport(content) {
		return ErrNotChatExport
	}

	messages := chatparse.Parse(content)
	valid := make([]chatChunk, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		sender := m.Sender
		date := m.Date
		valid = append(valid, chatChunk{content: m.Content, sender: &sender, date: &date})
	}

	total := len(valid)
	embedded := make([]searchindex.Chunk, 0, total)

	for i, chunk := range valid {
		safeProgress(progress, i, total)

		augmented := contextWindow(valid, i)
		vec, err := f.enc.Embed(augmented)
		if err != nil {
			return fmt.Errorf("%w: chunk %d: %v", ErrEncode, i, err)
		}

		embedded = append(embedded, searchindex.Chunk{
			DocID:     docID,
			Content:   chunk.content,
			Sender:    chunk.sender,
			Date:      chunk.date,
			Embedding: vec,
		})
	}

	for i, c := range embedded {
		if err := f.index.Append(c); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return nil
}

// contextWindow builds the context-augmented embedding input for valid[i]
// per spec.md §4.7 step 4. This preserves a documented source behavior: the
// "next" neighbor is always the global penultimate chunk (valid[total-2]),
// not the local next chunk — almost certainly an upstream bug, kept
// literally rather than silently corrected.
func contextWindow(valid []chatChunk, i int) string {
	total := len(valid)
	current := valid[i].content

	hasPrev := i > 0
	hasNext := i < total-1

	switch {
	case hasPrev && hasNext:
		return valid[i-1].content + " " + current + " " + valid[total-2].content
	case hasPrev:
		return valid[i-1].content + " " + current
	case hasNext:
		return current + " " + valid[total-2].content
	default:
		return current
	}
}

// safeProgress invokes progress, recovering from any panic so a
// misbehaving callback never aborts ingestion.
func safeProgress(progress ProgressFunc, i, total int) {
	if progress == nil {
		return
	}
	defer func() { _ = recover() }()
	progress(i, total)
}

// Search embeds query and ranks the Index's chunks against it. allowedDocIDs
// nil means no filter.
func (f *Facade) Search(query string, topK int, threshold float32, allowedDocIDs []string) ([]ranker.Result, error) {
	if !f.HasModel() {
		return nil, ErrNoModel
	}

	queryVec, err := f.enc.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrEncode, err)
	}

	var allowed map[string]struct{}
	if allowedDocIDs != nil {
		allowed = make(map[string]struct{}, len(allowedDocIDs))
		for _, id := range allowedDocIDs {
			allowed[id] = struct{}{}
		}
	}

	results := ranker.Search(f.index.Chunks(), query, queryVec, ranker.Options{
		TopK:          topK,
		Threshold:     threshold,
		AllowedDocIDs: allowed,
	})
	return results, nil
}

// Count returns the number of chunks currently stored.
func (f *Facade) Count() int { return f.index.Count() }

// DocumentIDs returns the sorted, deduplicated set of doc ids stored.
func (f *Facade) DocumentIDs() []string { return f.index.DocumentIDs() }

// Export returns the entire Index as a Snapshot value.
func (f *Facade) Export() searchindex.Snapshot { return f.index.Export() }

// Import atomically replaces the Index's contents with snap's.
func (f *Facade) Import(snap searchindex.Snapshot) error {
	if err := f.index.ReplaceFrom(snap); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	return nil
}

// DebugChunk renders chunk i as "[doc_id] content", or a sentinel string if
// i is out of bounds.
func (f *Facade) DebugChunk(i int) string {
	c, ok := f.index.At(i)
	if !ok {
		return "Index out of bounds"
	}
	return fmt.Sprintf("[%s] %s", c.DocID, c.Content)
}
