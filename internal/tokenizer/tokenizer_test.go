package tokenizer

import (
	"os"
	"testing"
)

// loadTestAdapter loads a tokenizer.json fixture if one is configured via
// CHATSIFT_TEST_TOKENIZER; tests that need a real tokenizer skip otherwise,
// mirroring the teacher's pattern of skipping when model artifacts aren't
// present in the environment.
func loadTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	path := os.Getenv("CHATSIFT_TEST_TOKENIZER")
	if path == "" {
		t.Skip("skipping: CHATSIFT_TEST_TOKENIZER not set")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Skipf("skipping: read tokenizer fixture: %v", err)
	}
	a, err := New(data)
	if err != nil {
		t.Skipf("skipping: load tokenizer: %v", err)
	}
	return a
}

func TestNewRejectsGarbageBytes(t *testing.T) {
	_, err := New([]byte("not a tokenizer"))
	if err == nil {
		t.Fatal("expected error for malformed tokenizer bytes, got nil")
	}
}

func TestSizeMatchesEncodeWithoutSpecialTokens(t *testing.T) {
	a := loadTestAdapter(t)
	defer a.Close()

	text := "the quick brown fox jumps over the lazy dog"
	size, err := a.Size(text)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	enc, err := a.Encode(text, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if size != len(enc.IDs) {
		t.Errorf("Size()=%d, len(Encode(_, false).IDs)=%d, want equal", size, len(enc.IDs))
	}
}

func TestEncodeAddsSpecialTokens(t *testing.T) {
	a := loadTestAdapter(t)
	defer a.Close()

	text := "hello world"
	plain, err := a.Encode(text, false)
	if err != nil {
		t.Fatalf("encode plain: %v", err)
	}
	special, err := a.Encode(text, true)
	if err != nil {
		t.Fatalf("encode special: %v", err)
	}
	if len(special.IDs) <= len(plain.IDs) {
		t.Errorf("expected special-token encoding to be longer: plain=%d special=%d",
			len(plain.IDs), len(special.IDs))
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a := loadTestAdapter(t)
	defer a.Close()

	text := "deterministic embeddings require deterministic tokenization"
	first, err := a.Encode(text, true)
	if err != nil {
		t.Fatalf("encode 1: %v", err)
	}
	second, err := a.Encode(text, true)
	if err != nil {
		t.Fatalf("encode 2: %v", err)
	}
	if len(first.IDs) != len(second.IDs) {
		t.Fatalf("length mismatch: %d vs %d", len(first.IDs), len(second.IDs))
	}
	for i := range first.IDs {
		if first.IDs[i] != second.IDs[i] {
			t.Errorf("id %d differs across runs: %d vs %d", i, first.IDs[i], second.IDs[i])
		}
	}
}
