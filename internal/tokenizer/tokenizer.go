// Package tokenizer adapts a HuggingFace tokenizer artifact to the
// id/attention-mask shape the encoder and splitter need.
package tokenizer

import (
	"fmt"

	"github.com/daulet/tokenizers"
)

// Encoding holds the token ids and attention mask for one encoded string.
type Encoding struct {
	IDs  []int64
	Mask []int64
}

// Adapter wraps a daulet/tokenizers.Tokenizer loaded from an in-memory
// tokenizer.json buffer. It is thread-confined: callers must not share one
// Adapter across goroutines without external synchronization.
type Adapter struct {
	tk *tokenizers.Tokenizer
}

// New loads a tokenizer from the raw bytes of a tokenizer.json artifact.
func New(tokenizerJSON []byte) (*Adapter, error) {
	tk, err := tokenizers.FromBytes(tokenizerJSON)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Adapter{tk: tk}, nil
}

// Close releases the underlying tokenizer.
func (a *Adapter) Close() {
	if a.tk != nil {
		a.tk.Close()
	}
}

// Encode returns token ids and an attention mask for text. When addSpecial
// is true, model-specific special tokens (e.g. [CLS]/[SEP]) are included.
func (a *Adapter) Encode(text string, addSpecial bool) (Encoding, error) {
	enc := a.tk.EncodeWithOptions(text, addSpecial, tokenizers.WithReturnAttentionMask())

	ids := make([]int64, len(enc.IDs))
	mask := make([]int64, len(enc.IDs))
	for i, v := range enc.IDs {
		ids[i] = int64(v)
		mask[i] = 1
	}
	if len(enc.AttentionMask) >= len(ids) {
		for i := range ids {
			mask[i] = int64(enc.AttentionMask[i])
		}
	}
	return Encoding{IDs: ids, Mask: mask}, nil
}

// Size returns the number of tokens text encodes to without special tokens.
// It is consistent with len(Encode(text, false).IDs) and is used by the
// splitter to budget chunks in tokens rather than bytes.
func (a *Adapter) Size(text string) (int, error) {
	enc, err := a.Encode(text, false)
	if err != nil {
		return 0, err
	}
	return len(enc.IDs), nil
}
