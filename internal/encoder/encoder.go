// Package encoder runs the transformer forward pass and turns a chunk of
// text into a deterministic, unit-norm sentence embedding: mean-pool every
// token position (unmasked — see the doc comment on Embed), then
// L2-normalize.
package encoder

import (
	"encoding/json"
	"fmt"
	"math"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/screenager/chatsift/internal/tokenizer"
)

const (
	// maxModelTokens is the hard limit before the coarse truncation
	// safeguard kicks in. The splitter keeps chunks well under this in
	// normal operation.
	maxModelTokens = 512
	// truncateChars is the character budget oversized inputs are cut down
	// to before re-encoding. This is a character count, not a token count
	// — pathological inputs (e.g. very long unbroken runs of rare
	// sub-tokens) may still exceed maxModelTokens after truncation.
	truncateChars = 2000
)

// Config describes the transformer's hyperparameters, decoded from the
// model's config.json-equivalent buffer.
type Config struct {
	NumHiddenLayers       int `json:"num_hidden_layers"`
	HiddenSize            int `json:"hidden_size"`
	VocabSize             int `json:"vocab_size"`
	MaxPositionEmbeddings int `json:"max_position_embeddings"`
}

// ParseConfig decodes a config.json-equivalent byte buffer.
func ParseConfig(configJSON []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse model config: %w", err)
	}
	if cfg.HiddenSize <= 0 {
		return Config{}, fmt.Errorf("model config missing hidden_size")
	}
	return cfg, nil
}

// Encoder wraps an ONNX Runtime session over an in-memory model buffer.
type Encoder struct {
	session *ort.DynamicAdvancedSession
	tok     *tokenizer.Adapter
	dim     int
}

// New builds an Encoder from an in-memory ONNX model buffer, a loaded
// tokenizer, and the model's hyperparameter config. ortLibPath is the path
// to onnxruntime's shared library; pass "" to use the system default. The
// runtime environment is initialized once per process: later calls reuse it
// and ignore ortLibPath. numThreads controls intra-op parallelism; 0 selects
// a small conservative default.
func New(modelBytes []byte, tok *tokenizer.Adapter, cfg Config, ortLibPath string, numThreads int) (*Encoder, error) {
	if !ort.IsInitialized() {
		if ortLibPath != "" {
			ort.SetSharedLibraryPath(ortLibPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("init ort: %w", err)
		}
	}

	if numThreads <= 0 {
		numThreads = 4
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()

	if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
		return nil, fmt.Errorf("set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("set inter threads: %w", err)
	}

	inputNames := []string{"input_ids", "attention_mask", "token_type_ids"}
	outputNames := []string{"last_hidden_state"}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(modelBytes, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("create session from model bytes: %w", err)
	}

	return &Encoder{session: session, tok: tok, dim: cfg.HiddenSize}, nil
}

// Close releases the ONNX session. The tokenizer is owned by the caller and
// is not closed here.
func (e *Encoder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
}

// Dim returns D, the embedding dimension for every vector Embed produces.
func (e *Encoder) Dim() int {
	return e.dim
}

// Embed encodes text with special tokens, truncates-and-retries once if the
// token count exceeds maxModelTokens, runs the forward pass, mean-pools
// every token position (padding is not masked out — the pooled vector is
// simply the unweighted mean over all T positions in the batch-of-one
// output; chunks are normally sized well under the model limit so padding
// is rare, but this is a documented, deliberate choice, not an oversight),
// and L2-normalizes the result.
func (e *Encoder) Embed(text string) ([]float32, error) {
	enc, err := e.tok.Encode(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	if len(enc.IDs) > maxModelTokens {
		truncated := text
		if r := []rune(truncated); len(r) > truncateChars {
			truncated = string(r[:truncateChars])
		}
		enc, err = e.tok.Encode(truncated, true)
		if err != nil {
			return nil, fmt.Errorf("tokenize truncated: %w", err)
		}
	}

	t := len(enc.IDs)
	if t == 0 {
		return nil, fmt.Errorf("empty token sequence")
	}

	shape := ort.NewShape(1, int64(t))
	tokenType := make([]int64, t)

	idsTensor, err := ort.NewTensor(shape, enc.IDs)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, enc.Mask)
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typeTensor, err := ort.NewTensor(shape, tokenType)
	if err != nil {
		return nil, fmt.Errorf("token_type_ids tensor: %w", err)
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs); err != nil {
		return nil, fmt.Errorf("ort run: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	hiddenTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type (want *Tensor[float32])")
	}
	hidden := hiddenTensor.GetData()
	shapeOut := hiddenTensor.GetShape()
	seqLen := int(shapeOut[1])
	dim := int(shapeOut[2])

	return meanPoolAndNormalize(hidden, seqLen, dim), nil
}

// meanPoolAndNormalize averages hidden's T rows of D floats (row-major,
// batch size 1) into one D-vector, then L2-normalizes it. Returns a zero
// vector if the pooled vector's norm is degenerate.
func meanPoolAndNormalize(hidden []float32, seqLen, dim int) []float32 {
	sum := make([]float64, dim)
	for t := 0; t < seqLen; t++ {
		base := t * dim
		for d := 0; d < dim; d++ {
			sum[d] += float64(hidden[base+d])
		}
	}

	vec := make([]float32, dim)
	var norm float64
	for d := 0; d < dim; d++ {
		mean := sum[d] / float64(seqLen)
		vec[d] = float32(mean)
		norm += mean * mean
	}
	norm = math.Sqrt(norm)
	if norm < 1e-12 {
		return make([]float32, dim)
	}
	inv := float32(1.0 / norm)
	for d := range vec {
		vec[d] *= inv
	}
	return vec
}
