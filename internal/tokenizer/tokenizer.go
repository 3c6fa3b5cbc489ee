// Package tokenizer splits text into model input ids, per spec.md §4.5. No
// example repo in the retrieval pack links a real BPE/WordPiece library, so
// this implements a small, fully-deterministic word/subword splitter: split
// on Unicode word boundaries, look each word up in a vocabulary, and fall
// back to per-rune subword ids for anything unseen. The Encoding shape
// (input_ids/attention_mask/offsets, byte offsets, special tokens at (0,0))
// is exactly what spec.md §4.5/§5 require regardless of the splitting
// algorithm underneath.
package tokenizer

import (
	"unicode"
	"unicode/utf8"

	"github.com/llmshield/gateway/internal/gwerrors"
)

const (
	padToken = "[PAD]"
	unkToken = "[UNK]"
	clsToken = "[CLS]"
	sepToken = "[SEP]"
)

// Config controls Encode's truncation/padding/special-token behavior.
type Config struct {
	MaxLength        int
	Padding          bool
	Truncation       bool
	AddSpecialTokens bool
}

// Encoding is one Encode call's output. Offsets are byte offsets into the
// original text (spec.md §5 "Unicode vs byte offsets"); special tokens and
// padding use (0,0).
type Encoding struct {
	InputIDs      []int32
	AttentionMask []int32
	Offsets       [][2]int
}

// Tokenizer is immutable after construction; safe for concurrent readers
// (spec.md §4.5).
type Tokenizer struct {
	vocab   map[string]int32
	padID   int32
	unkID   int32
	clsID   int32
	sepID   int32
	nextID  int32
	cfg     Config
}

// NewFromVocab constructs a Tokenizer over a caller-supplied word vocabulary,
// reserving ids for [PAD]/[UNK]/[CLS]/[SEP] if not already present.
func NewFromVocab(words []string, cfg Config) (*Tokenizer, error) {
	if cfg.MaxLength <= 0 {
		return nil, gwerrors.Invalid("tokenizer.NewFromVocab", "max_length must be > 0")
	}

	t := &Tokenizer{vocab: make(map[string]int32, len(words)+4), cfg: cfg}
	t.padID = t.intern(padToken)
	t.unkID = t.intern(unkToken)
	t.clsID = t.intern(clsToken)
	t.sepID = t.intern(sepToken)
	for _, w := range words {
		t.intern(w)
	}
	return t, nil
}

func (t *Tokenizer) intern(word string) int32 {
	if id, ok := t.vocab[word]; ok {
		return id
	}
	id := t.nextID
	t.vocab[word] = id
	t.nextID++
	return id
}

type wordSpan struct {
	text       string
	start, end int // byte offsets
}

// splitWords breaks text into Unicode-aware word/punctuation spans, treating
// runs of whitespace as separators and each punctuation rune as its own span
// (spec.md §4.5 leaves the exact tokenization algorithm unspecified, only
// the Encoding shape; this uses unicode.IsSpace/unicode.IsPunct exactly as
// SPEC_FULL.md §5.5 describes).
func splitWords(text string) []wordSpan {
	var spans []wordSpan
	start := -1
	for i, r := range text {
		switch {
		case unicode.IsSpace(r):
			if start != -1 {
				spans = append(spans, wordSpan{text[start:i], start, i})
				start = -1
			}
		case unicode.IsPunct(r):
			if start != -1 {
				spans = append(spans, wordSpan{text[start:i], start, i})
				start = -1
			}
			end := i + utf8.RuneLen(r)
			spans = append(spans, wordSpan{text[i:end], i, end})
		default:
			if start == -1 {
				start = i
			}
		}
	}
	if start != -1 {
		spans = append(spans, wordSpan{text[start:], start, len(text)})
	}
	return spans
}

// Encode tokenizes text into an Encoding per spec.md §4.5.
func (t *Tokenizer) Encode(text string) (Encoding, error) {
	words := splitWords(text)

	var ids []int32
	var offsets [][2]int

	if t.cfg.AddSpecialTokens {
		ids = append(ids, t.clsID)
		offsets = append(offsets, [2]int{0, 0})
	}

	for _, w := range words {
		if id, ok := t.vocab[w.text]; ok {
			ids = append(ids, id)
			offsets = append(offsets, [2]int{w.start, w.end})
			continue
		}
		// Unseen word: fall back to per-rune subword ids rather than a
		// single [UNK], so downstream keyword-weighted scoring still has
		// signal from individual characters.
		pos := w.start
		for _, r := range w.text {
			rl := utf8.RuneLen(r)
			id, ok := t.vocab[string(r)]
			if !ok {
				id = t.unkID
			}
			ids = append(ids, id)
			offsets = append(offsets, [2]int{pos, pos + rl})
			pos += rl
		}
	}

	if t.cfg.AddSpecialTokens {
		ids = append(ids, t.sepID)
		offsets = append(offsets, [2]int{0, 0})
	}

	if t.cfg.Truncation && len(ids) > t.cfg.MaxLength {
		if t.cfg.AddSpecialTokens && t.cfg.MaxLength >= 2 {
			// Keep CLS at the front and SEP at the very end.
			body := t.cfg.MaxLength - 2
			ids = append(append(append([]int32{}, ids[:1+body]...)), t.sepID)
			offsets = append(append(append([][2]int{}, offsets[:1+body]...)), [2]int{0, 0})
		} else {
			ids = ids[:t.cfg.MaxLength]
			offsets = offsets[:t.cfg.MaxLength]
		}
	}

	mask := make([]int32, len(ids))
	for i := range mask {
		mask[i] = 1
	}

	if t.cfg.Padding {
		for len(ids) < t.cfg.MaxLength {
			ids = append(ids, t.padID)
			offsets = append(offsets, [2]int{0, 0})
			mask = append(mask, 0)
		}
	}

	return Encoding{InputIDs: ids, AttentionMask: mask, Offsets: offsets}, nil
}

// EncodeBatch encodes every text independently, preserving order — "
// functionally equivalent to per-item encoding" per spec.md §4.5; there is
// no real tensor backend to batch against (see SPEC_FULL.md §6.1).
func (t *Tokenizer) EncodeBatch(texts []string) ([]Encoding, error) {
	out := make([]Encoding, len(texts))
	for i, s := range texts {
		enc, err := t.Encode(s)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}
